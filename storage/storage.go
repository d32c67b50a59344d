package storage

// ProductFilter narrows catalog listings for the read API. Query matches
// canonical names and the raw vendor names mapped onto a product.
type ProductFilter struct {
	Brand    string
	Category string
	Query    string
	Offset   int
	Limit    int
}
