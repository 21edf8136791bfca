package sqlguard

import "testing"

func TestValidateAcceptsSelect(t *testing.T) {
	queries := []string{
		"SELECT product_category, COUNT(*) FROM sales_table GROUP BY product_category",
		"select shipping_state, AVG(product_price) from sales_table group by shipping_state",
		"  SELECT 1  ",
		"SELECT order_id FROM sales_table;",
	}
	for _, q := range queries {
		if !Validate(q) {
			t.Fatalf("Validate(%q) = false, want true", q)
		}
	}
}

func TestValidateSkipsLeadingComments(t *testing.T) {
	queries := []string{
		"-- total revenue by category\nSELECT product_category, SUM(product_price) FROM sales_table GROUP BY product_category",
		"/* model preamble */ SELECT 1",
		"/* outer */\n-- inner\nSELECT order_id FROM sales_table",
	}
	for _, q := range queries {
		if !Validate(q) {
			t.Fatalf("Validate(%q) = false, want true", q)
		}
	}
	if Validate("-- comment with no statement") {
		t.Fatal("Validate() = true for comment-only text")
	}
	if Validate("/* unterminated SELECT 1") {
		t.Fatal("Validate() = true for unterminated block comment")
	}
}

func TestValidateRejectsNonSelect(t *testing.T) {
	queries := []string{
		"UPDATE sales_table SET order_status='Shipped'",
		"EXPLAIN SELECT 1",
		"WITH t AS (SELECT 1) SELECT * FROM t",
		"",
		"   ",
		";;",
	}
	for _, q := range queries {
		if Validate(q) {
			t.Fatalf("Validate(%q) = true, want false", q)
		}
	}
}

func TestValidateRejectsDenylistedKeywordsAnywhere(t *testing.T) {
	queries := []string{
		"SELECT 1; DROP TABLE sales_table",
		"SELECT 'drop' FROM sales_table",
		"SELECT * FROM sales_table -- delete later",
		"SELECT update_count FROM sales_table",
		"select * from sales_table where note = 'insert here'",
	}
	for _, q := range queries {
		if Validate(q) {
			t.Fatalf("Validate(%q) = true, want false", q)
		}
	}
}
