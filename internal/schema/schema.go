// Package schema carries the curated description of the sales analytics
// table. The descriptors are maintained by hand so the generation prompt
// stays stable; live facts are refreshed from the database on a best-effort
// basis and fall back to the curated defaults when the database is
// unreachable.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/salestory/salestory/internal/storage"
)

type ColumnDescriptor struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	SampleValues []string `json:"sample_values"`
	BusinessNote string   `json:"business_note"`
}

// Facts are dataset-level figures quoted in the prompt. Defaults describe the
// reference dataset; Refresh overwrites them with live values when it can.
type Facts struct {
	RowCount        int64  `json:"row_count"`
	UniqueCustomers int64  `json:"unique_customers"`
	UniqueProducts  int64  `json:"unique_products"`
	FirstOrderDate  string `json:"first_order_date"`
	LastOrderDate   string `json:"last_order_date"`
}

type Context struct {
	TableName string             `json:"table_name"`
	Columns   []ColumnDescriptor `json:"columns"`
	Facts     Facts              `json:"facts"`
}

// Build returns the curated schema context for the given table.
func Build(tableName string) *Context {
	if strings.TrimSpace(tableName) == "" {
		tableName = "sales_table"
	}
	return &Context{
		TableName: tableName,
		Columns: []ColumnDescriptor{
			{
				Name:         "order_id",
				Type:         "BIGINT",
				Description:  "Unique identifier for each order",
				SampleValues: []string{"1", "2", "3", "4", "5"},
				BusinessNote: "Primary key for orders, sequential numbering",
			},
			{
				Name:         "customer_id",
				Type:         "BIGINT",
				Description:  "Unique identifier for each customer",
				SampleValues: []string{"1", "50", "100", "200", "500"},
				BusinessNote: "Customer IDs range from 1 to 500, representing 500 unique customers",
			},
			{
				Name:         "order_date",
				Type:         "TIMESTAMP",
				Description:  "Date and time when the order was placed",
				SampleValues: []string{"2023-01-15", "2023-06-20", "2023-09-10", "2023-12-05"},
				BusinessNote: "Orders span the entire year 2023, showing seasonal patterns",
			},
			{
				Name:         "product_name",
				Type:         "VARCHAR",
				Description:  "Full name of the product ordered",
				SampleValues: []string{"Apple iPhone 15 Pro Max", "Samsung Galaxy S24 Ultra", "Nike Air Force 1", "Levi's 501 Jeans"},
				BusinessNote: "Real product names from major brands across all categories",
			},
			{
				Name:         "product_category",
				Type:         "VARCHAR",
				Description:  "Main product category",
				SampleValues: []string{"Electronics & Gadgets", "Clothing & Apparel", "Home & Furniture", "Beauty & Personal Care"},
				BusinessNote: "8 main categories: Electronics & Gadgets, Clothing & Apparel, Home & Furniture, Books & Media, Beauty & Personal Care, Sports & Outdoors, Fashion Accessories, Toys & Games",
			},
			{
				Name:         "product_subcategory",
				Type:         "VARCHAR",
				Description:  "Specific subcategory within the main category",
				SampleValues: []string{"Smartphones", "Laptops", "Men's Clothing", "Skincare", "Furniture"},
				BusinessNote: "Each category has 4 subcategories",
			},
			{
				Name:         "quantity_ordered",
				Type:         "BIGINT",
				Description:  "Number of units ordered",
				SampleValues: []string{"1", "2", "3", "4", "5"},
				BusinessNote: "Quantity ranges from 1 to 5 units per order",
			},
			{
				Name:         "product_price",
				Type:         "DOUBLE",
				Description:  "Price per unit in USD",
				SampleValues: []string{"29.99", "199.99", "599.99", "1299.99"},
				BusinessNote: "Prices vary by category: Electronics ($150-$3500), Clothing ($10-$400), Books ($4-$60)",
			},
			{
				Name:         "payment_method",
				Type:         "VARCHAR",
				Description:  "Method used to pay for the order",
				SampleValues: []string{"Credit Card", "PayPal", "Debit Card", "Online Banking"},
				BusinessNote: "4 payment methods reflecting modern e-commerce preferences",
			},
			{
				Name:         "shipping_state",
				Type:         "VARCHAR",
				Description:  "US state where the order is shipped",
				SampleValues: []string{"California", "Texas", "New York", "Florida", "Illinois", "Pennsylvania"},
				BusinessNote: "Orders ship to 6 major US states",
			},
			{
				Name:         "order_status",
				Type:         "VARCHAR",
				Description:  "Current status of the order",
				SampleValues: []string{"Placed", "Processing", "Shipped", "Delivered", "Cancelled", "Returned"},
				BusinessNote: "6 order statuses representing the complete order lifecycle",
			},
		},
		Facts: Facts{
			RowCount:        10000,
			UniqueCustomers: 500,
			UniqueProducts:  0,
			FirstOrderDate:  "2023-01-01",
			LastOrderDate:   "2023-12-31",
		},
	}
}

// ColumnNames lists column names in declaration order.
func (c *Context) ColumnNames() []string {
	names := make([]string, 0, len(c.Columns))
	for _, column := range c.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Refresh replaces curated facts with live values. Failures are logged and
// leave the existing facts untouched; the prompt must work even when the
// database is cold.
func (c *Context) Refresh(ctx context.Context, exec storage.Executor, logger *slog.Logger) {
	facts := []struct {
		sql   string
		apply func(value any)
	}{
		{
			sql: fmt.Sprintf("SELECT COUNT(*) FROM %s", c.TableName),
			apply: func(value any) {
				if n, ok := asInt64(value); ok {
					c.Facts.RowCount = n
				}
			},
		},
		{
			sql: fmt.Sprintf("SELECT COUNT(DISTINCT customer_id) FROM %s", c.TableName),
			apply: func(value any) {
				if n, ok := asInt64(value); ok {
					c.Facts.UniqueCustomers = n
				}
			},
		},
		{
			sql: fmt.Sprintf("SELECT COUNT(DISTINCT product_name) FROM %s", c.TableName),
			apply: func(value any) {
				if n, ok := asInt64(value); ok {
					c.Facts.UniqueProducts = n
				}
			},
		},
		{
			sql: fmt.Sprintf("SELECT CAST(MIN(order_date) AS VARCHAR) FROM %s", c.TableName),
			apply: func(value any) {
				if s, ok := value.(string); ok && s != "" {
					c.Facts.FirstOrderDate = s
				}
			},
		},
		{
			sql: fmt.Sprintf("SELECT CAST(MAX(order_date) AS VARCHAR) FROM %s", c.TableName),
			apply: func(value any) {
				if s, ok := value.(string); ok && s != "" {
					c.Facts.LastOrderDate = s
				}
			},
		},
	}

	for _, fact := range facts {
		result, err := exec.Query(ctx, fact.sql)
		if err != nil {
			logger.WarnContext(ctx, "schema fact refresh failed", "sql", fact.sql, "error", err)
			continue
		}
		if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
			continue
		}
		fact.apply(result.Rows[0][0])
	}
}

// PromptText renders the schema context block embedded in generation prompts.
// Output is deterministic for a given Context value.
func (c *Context) PromptText() string {
	var b strings.Builder
	b.WriteString("DATABASE SCHEMA CONTEXT FOR E-COMMERCE ANALYTICS\n\n")
	fmt.Fprintf(&b, "Table: %s\n", c.TableName)
	fmt.Fprintf(&b, "Description: Contains e-commerce order data with %d orders from %d unique customers.\n\n", c.Facts.RowCount, c.Facts.UniqueCustomers)
	b.WriteString("COLUMNS:\n")
	for _, column := range c.Columns {
		fmt.Fprintf(&b, "- %s (%s)\n", column.Name, column.Type)
		fmt.Fprintf(&b, "  Description: %s\n", column.Description)
		fmt.Fprintf(&b, "  Sample Values: %s\n", strings.Join(column.SampleValues, ", "))
		fmt.Fprintf(&b, "  Business Context: %s\n", column.BusinessNote)
	}
	b.WriteString("\nBUSINESS CONTEXT:\n")
	fmt.Fprintf(&b, "- Time Period: %s to %s\n", c.Facts.FirstOrderDate, c.Facts.LastOrderDate)
	fmt.Fprintf(&b, "- Customer Base: %d unique customers\n", c.Facts.UniqueCustomers)
	fmt.Fprintf(&b, "- Order Volume: %d total orders\n", c.Facts.RowCount)
	b.WriteString("- Product Range: 8 main categories with 4 subcategories each\n")
	b.WriteString("- Geographic Coverage: 6 major US states\n")
	b.WriteString("\nCOMMON QUERY PATTERNS:\n")
	b.WriteString("- Sales trends over time (monthly, quarterly, seasonal)\n")
	b.WriteString("- Top-performing products and categories\n")
	b.WriteString("- Customer behavior analysis\n")
	b.WriteString("- Geographic sales distribution\n")
	b.WriteString("- Payment method preferences\n")
	b.WriteString("- Order status tracking\n")
	b.WriteString("\nSAMPLE QUERIES:\n")
	fmt.Fprintf(&b, "1. Monthly sales trends: SELECT DATE_TRUNC('month', order_date) AS month, SUM(product_price * quantity_ordered) AS total_sales FROM %s GROUP BY month ORDER BY month\n", c.TableName)
	fmt.Fprintf(&b, "2. Top categories: SELECT product_category, COUNT(*) AS orders FROM %s GROUP BY product_category ORDER BY orders DESC\n", c.TableName)
	fmt.Fprintf(&b, "3. Average order value by state: SELECT shipping_state, AVG(product_price * quantity_ordered) AS avg_order_value FROM %s GROUP BY shipping_state ORDER BY avg_order_value DESC\n", c.TableName)
	return b.String()
}

// CategoryMap returns categories mapped to their subcategories, read from the
// live table when possible and falling back to the curated mapping.
func (c *Context) CategoryMap(ctx context.Context, exec storage.Executor) map[string][]string {
	result, err := exec.Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT product_category, product_subcategory FROM %s ORDER BY product_category, product_subcategory", c.TableName))
	if err == nil && len(result.Rows) > 0 {
		categories := map[string][]string{}
		for _, row := range result.Rows {
			if len(row) < 2 {
				continue
			}
			category, okCat := row[0].(string)
			subcategory, okSub := row[1].(string)
			if !okCat || !okSub {
				continue
			}
			categories[category] = append(categories[category], subcategory)
		}
		if len(categories) > 0 {
			for _, subs := range categories {
				sort.Strings(subs)
			}
			return categories
		}
	}
	return defaultCategoryMap()
}

func defaultCategoryMap() map[string][]string {
	return map[string][]string{
		"Electronics & Gadgets":  {"Headphones", "Laptops", "Smartphones", "Smartwatches"},
		"Clothing & Apparel":     {"Accessories", "Men's Clothing", "Shoes", "Women's Clothing"},
		"Home & Furniture":       {"Bedding & Bath", "Furniture", "Home Decor", "Kitchen & Dining"},
		"Books & Media":          {"Books", "E-books", "Movies", "Music"},
		"Beauty & Personal Care": {"Fragrances", "Haircare", "Makeup", "Skincare"},
		"Sports & Outdoors":      {"Camping & Hiking", "Cycling", "Fitness Equipment", "Sports Apparel"},
		"Fashion Accessories":    {"Bags & Luggage", "Jewelry", "Sunglasses", "Watches"},
		"Toys & Games":           {"Action Figures", "Board Games", "Educational Toys", "Puzzles"},
	}
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int32:
		return int64(typed), true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	default:
		return 0, false
	}
}
