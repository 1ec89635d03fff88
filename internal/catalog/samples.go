package catalog

import "github.com/hyperjump/prodsearch/internal/models"

// SampleProducts returns the built-in demo catalog. Each call returns a fresh slice.
func SampleProducts() []models.Product {
	return []models.Product{
		{
			ID:          1,
			Name:        "Premium Wireless Noise-Cancelling Headphones",
			Description: "High-quality wireless headphones with active noise cancellation, 30-hour battery life, and premium sound quality",
			Category:    "Electronics",
			Price:       299.99,
			Rating:      4.8,
		},
		{
			ID:          2,
			Name:        "Bluetooth Earbuds with Charging Case",
			Description: "Compact wireless earbuds with touch controls, 24-hour battery life with charging case, and water resistance",
			Category:    "Electronics",
			Price:       149.99,
			Rating:      4.5,
		},
		{
			ID:          3,
			Name:        "Smart LED TV 55-inch 4K",
			Description: "55-inch 4K Ultra HD Smart LED TV with HDR support, built-in streaming apps, and voice control",
			Category:    "Electronics",
			Price:       699.99,
			Rating:      4.7,
		},
		{
			ID:          4,
			Name:        "Professional Digital Camera",
			Description: "24.2MP digital camera with 4K video recording, touchscreen LCD, and wireless connectivity",
			Category:    "Electronics",
			Price:       899.99,
			Rating:      4.9,
		},
		{
			ID:          5,
			Name:        "Gaming Laptop",
			Description: "Powerful gaming laptop with RTX graphics, 16GB RAM, 1TB SSD, and high refresh rate display",
			Category:    "Electronics",
			Price:       1499.99,
			Rating:      4.6,
		},
		{
			ID:          6,
			Name:        "Smartphone with 5G",
			Description: "Latest smartphone with 5G connectivity, triple camera system, and all-day battery life",
			Category:    "Electronics",
			Price:       799.99,
			Rating:      4.7,
		},
		{
			ID:          7,
			Name:        "Wireless Gaming Mouse",
			Description: "High-precision wireless gaming mouse with RGB lighting and customizable buttons",
			Category:    "Electronics",
			Price:       79.99,
			Rating:      4.4,
		},
		{
			ID:          8,
			Name:        "Smart Watch with Health Tracking",
			Description: "Advanced smartwatch with health monitoring, GPS, and smartphone notifications",
			Category:    "Electronics",
			Price:       249.99,
			Rating:      4.6,
		},
		{
			ID:          9,
			Name:        "Portable Bluetooth Speaker",
			Description: "Waterproof portable speaker with 360-degree sound and 20-hour battery life",
			Category:    "Electronics",
			Price:       129.99,
			Rating:      4.5,
		},
		{
			ID:          10,
			Name:        "Tablet with Stylus",
			Description: "10-inch tablet with high-resolution display, stylus support, and powerful processor",
			Category:    "Electronics",
			Price:       449.99,
			Rating:      4.7,
		},
	}
}
