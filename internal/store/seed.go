package store

type template struct {
	title       string
	category    string
	description string
	tags        []string
}

// defaultTemplates is the starter catalog inserted by SeedDefaults.
var defaultTemplates = []template{
	{"Best Sushi in Town", "Restaurant", "Fresh nigiri and creative rolls.", []string{"sushi", "japanese", "dinner"}},
	{"Morning Coffee Spot", "Restaurant", "Fantastic espresso and pastries.", []string{"coffee", "breakfast"}},
	{"Hydrating Face Serum", "Beauty", "Lightweight, absorbs quickly.", []string{"skincare", "serum"}},
	{"Everyday Moisturizer", "Beauty", "Non-greasy, great under makeup.", []string{"moisturizer"}},
	{"Classic White Sneakers", "Clothing", "Comfortable and versatile.", []string{"shoes", "casual"}},
	{"Rain Jacket", "Clothing", "Waterproof and breathable.", []string{"outerwear", "travel"}},
	{"Noise-Canceling Headphones", "Electronics", "Great sound and ANC.", []string{"audio", "work"}},
	{"Portable Charger", "Electronics", "Fast charging on the go.", []string{"battery", "travel"}},
	{"Cookbook: Weeknight Meals", "Books", "Simple, tasty recipes.", []string{"cooking", "easy"}},
	{"Yoga Mat", "Fitness", "Non-slip, easy to clean.", []string{"yoga", "home-gym"}},
}

// TemplateCount is the number of items SeedDefaults adds to an empty owner.
func TemplateCount() int {
	return len(defaultTemplates)
}
