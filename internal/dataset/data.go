package dataset

// The fixture reproduces a small company: departments, an employee hierarchy
// (manager_id self-reference, NULL for top-level managers), customers,
// a product catalog, orders and their line items. NULLs are placed
// deliberately so NULL-semantics queries have something to bite on.

func buildTables() []*Table {
	return []*Table{
		departmentsTable(),
		employeesTable(),
		customersTable(),
		productsTable(),
		ordersTable(),
		orderItemsTable(),
	}
}

func departmentsTable() *Table {
	t := NewTable("departments",
		[]Column{
			{Name: "id", Type: IntType, PrimaryKey: true},
			{Name: "name", Type: TextType},
			{Name: "budget", Type: DecimalType},
			{Name: "location", Type: TextType, Nullable: true},
		},
		[]Index{{Name: "PRIMARY", Column: "id"}},
	)
	t.Rows = [][]any{
		{1, "Engineering", 500000.0, "Building A, Floor 3"},
		{2, "Sales", 300000.0, "Building B, Floor 1"},
		{3, "Marketing", 200000.0, "Building B, Floor 2"},
		{4, "HR", 150000.0, nil},
		{5, "Finance", 250000.0, "Building A, Floor 1"},
		{6, "Research", 400000.0, nil}, // no employees yet
	}
	return t
}

func employeesTable() *Table {
	t := NewTable("employees",
		[]Column{
			{Name: "id", Type: IntType, PrimaryKey: true},
			{Name: "name", Type: TextType},
			{Name: "department_id", Type: IntType, Ref: &ForeignRef{Table: "departments", Column: "id"}},
			{Name: "manager_id", Type: IntType, Nullable: true, Ref: &ForeignRef{Table: "employees", Column: "id"}},
			{Name: "salary", Type: DecimalType},
			{Name: "hire_date", Type: DateType},
			{Name: "email", Type: TextType, Nullable: true},
			{Name: "phone", Type: TextType, Nullable: true},
		},
		[]Index{
			{Name: "PRIMARY", Column: "id"},
			{Name: "idx_salary", Column: "salary"},
			{Name: "idx_department", Column: "department_id"},
			{Name: "idx_manager", Column: "manager_id"},
		},
	)
	t.Rows = [][]any{
		{1, "Alice Chen", 1, 5, 95000.0, d(2020, 3, 15), "alice@company.com", "555-0101"},
		{2, "Bob Smith", 1, 5, 85000.0, d(2021, 6, 1), "bob@company.com", "555-0102"},
		{3, "Carol Davis", 1, 5, 110000.0, d(2019, 1, 10), "carol@company.com", nil},
		{4, "David Lee", 1, 3, 75000.0, d(2022, 8, 20), "david@company.com", "555-0104"},
		{5, "Eva Martinez", 1, nil, 125000.0, d(2018, 5, 5), "eva@company.com", "555-0105"},
		{6, "Frank Wilson", 2, 9, 65000.0, d(2021, 2, 14), "frank@company.com", "555-0106"},
		{7, "Grace Kim", 2, 9, 72000.0, d(2020, 11, 30), "grace@company.com", "555-0107"},
		{8, "Henry Brown", 2, 9, 58000.0, d(2022, 4, 18), nil, "555-0108"},
		{9, "Ivy Taylor", 2, nil, 80000.0, d(2019, 9, 22), "ivy@company.com", "555-0109"},
		{10, "Jack Anderson", 2, 9, 68000.0, d(2021, 7, 7), "jack@company.com", nil},
		{11, "Karen White", 3, 13, 62000.0, d(2020, 6, 12), "karen@company.com", "555-0111"},
		{12, "Leo Garcia", 3, 13, 55000.0, d(2022, 1, 25), "leo@company.com", "555-0112"},
		{13, "Maria Rodriguez", 3, nil, 70000.0, d(2019, 4, 3), "maria@company.com", "555-0113"},
		{14, "Nathan Clark", 3, 13, 48000.0, d(2023, 2, 8), nil, nil},
		{15, "Olivia Moore", 4, nil, 52000.0, d(2021, 10, 5), "olivia@company.com", "555-0115"},
		{16, "Peter Hall", 4, 15, 58000.0, d(2020, 8, 17), "peter@company.com", "555-0116"},
		{17, "Quinn Adams", 4, 15, 45000.0, d(2022, 12, 1), "quinn@company.com", "555-0117"},
		{18, "Rachel Scott", 5, 20, 78000.0, d(2019, 7, 14), "rachel@company.com", "555-0118"},
		{19, "Sam Turner", 5, 20, 85000.0, d(2020, 3, 28), "sam@company.com", "555-0119"},
		{20, "Tina Phillips", 5, nil, 92000.0, d(2018, 11, 9), "tina@company.com", "555-0120"},
	}
	return t
}

func customersTable() *Table {
	t := NewTable("customers",
		[]Column{
			{Name: "id", Type: IntType, PrimaryKey: true},
			{Name: "name", Type: TextType},
			{Name: "email", Type: TextType},
			{Name: "city", Type: TextType, Nullable: true},
			{Name: "country", Type: TextType},
			{Name: "credit_limit", Type: DecimalType, Nullable: true},
			{Name: "created_at", Type: DateTimeType},
		},
		[]Index{
			{Name: "PRIMARY", Column: "id"},
			{Name: "idx_country", Column: "country"},
		},
	)
	t.Rows = [][]any{
		{1, "Acme Corp", "orders@acme.com", "New York", "USA", 50000.0, dt(2022, 1, 15, 10, 30)},
		{2, "TechStart Inc", "purchasing@techstart.io", "San Francisco", "USA", 25000.0, dt(2022, 3, 22, 14, 45)},
		{3, "Global Trade Ltd", "procurement@globaltrade.co.uk", "London", "UK", 75000.0, dt(2021, 11, 8, 9, 0)},
		{4, "DataDriven GmbH", "einkauf@datadriven.de", nil, "Germany", 30000.0, dt(2022, 6, 1, 11, 15)},
		{5, "CloudNine Solutions", "admin@cloudnine.com", "Toronto", "Canada", nil, dt(2023, 2, 14, 16, 30)},
		{6, "StartUp Ventures", "hello@startupventures.com", "Austin", "USA", 10000.0, dt(2023, 5, 20, 8, 45)},
		{7, "Enterprise Systems", "orders@enterprise-sys.com", nil, "USA", 100000.0, dt(2020, 8, 12, 13, 0)},
		{8, "SmallBiz Co", "contact@smallbiz.com", "Chicago", "USA", nil, dt(2023, 7, 1, 10, 0)},
		{9, "Innovation Labs", "procurement@innovlabs.com", "Seattle", "USA", 45000.0, dt(2022, 9, 5, 15, 30)},
		{10, "Mega Industries", "purchasing@megaind.com", "Detroit", "USA", 200000.0, dt(2019, 4, 18, 9, 30)},
	}
	return t
}

func productsTable() *Table {
	t := NewTable("products",
		[]Column{
			{Name: "id", Type: IntType, PrimaryKey: true},
			{Name: "name", Type: TextType},
			{Name: "category", Type: TextType},
			{Name: "price", Type: DecimalType},
			{Name: "stock_quantity", Type: IntType},
			{Name: "weight", Type: DecimalType, Nullable: true},
			{Name: "is_active", Type: BoolType},
		},
		[]Index{
			{Name: "PRIMARY", Column: "id"},
			{Name: "idx_category", Column: "category"},
		},
	)
	t.Rows = [][]any{
		{1, "Basic License", "Software", 299.99, 1000, nil, true},
		{2, "Professional License", "Software", 599.99, 500, nil, true},
		{3, "Enterprise License", "Software", 1499.99, 200, nil, true},
		{4, "Premium Add-on", "Software", 199.99, 800, nil, true},
		{5, "Support Package (1yr)", "Service", 499.99, 999, nil, true},
		{6, "USB Security Key", "Hardware", 49.99, 500, 0.05, true},
		{7, "Hardware Token", "Hardware", 79.99, 300, 0.08, true},
		{8, "Server Appliance", "Hardware", 2999.99, 50, 15.5, true},
		{9, "Training Bundle", "Training", 999.99, 100, nil, true},
		{10, "Certification Exam", "Training", 299.99, 999, nil, true},
		{11, "Legacy Module", "Software", 199.99, 0, nil, false},
		{12, "Old Hardware Key", "Hardware", 29.99, 25, 0.03, false},
	}
	return t
}

func ordersTable() *Table {
	t := NewTable("orders",
		[]Column{
			{Name: "id", Type: IntType, PrimaryKey: true},
			{Name: "customer_id", Type: IntType, Ref: &ForeignRef{Table: "customers", Column: "id"}},
			{Name: "employee_id", Type: IntType, Ref: &ForeignRef{Table: "employees", Column: "id"}},
			{Name: "order_date", Type: DateType},
			{Name: "shipped_date", Type: DateType, Nullable: true},
			{Name: "status", Type: TextType},
			{Name: "notes", Type: TextType, Nullable: true},
		},
		[]Index{
			{Name: "PRIMARY", Column: "id"},
			{Name: "idx_customer", Column: "customer_id"},
			{Name: "idx_employee", Column: "employee_id"},
			{Name: "idx_status", Column: "status"},
		},
	)
	t.Rows = [][]any{
		{1, 1, 6, d(2023, 1, 15), d(2023, 1, 18), "delivered", nil},
		{2, 2, 7, d(2023, 2, 20), d(2023, 2, 25), "delivered", "Rush order"},
		{3, 1, 9, d(2023, 3, 10), d(2023, 3, 15), "delivered", nil},
		{4, 3, 6, d(2023, 3, 25), d(2023, 4, 1), "delivered", "International shipping"},
		{5, 4, 10, d(2023, 4, 5), d(2023, 4, 8), "delivered", nil},
		{6, 5, 8, d(2023, 4, 18), d(2023, 4, 22), "delivered", nil},
		{7, 2, 7, d(2023, 5, 8), d(2023, 5, 12), "shipped", nil},
		{8, 6, 9, d(2023, 5, 22), nil, "processing", "Pending payment verification"},
		{9, 7, 6, d(2023, 6, 3), d(2023, 6, 5), "delivered", nil},
		{10, 1, 10, d(2023, 6, 15), d(2023, 6, 18), "delivered", "Repeat customer discount applied"},
		{11, 8, 7, d(2023, 7, 1), nil, "pending", nil},
		{12, 9, 8, d(2023, 7, 20), d(2023, 7, 25), "shipped", nil},
		{13, 10, 9, d(2023, 8, 5), d(2023, 8, 8), "delivered", "VIP customer"},
		{14, 3, 6, d(2023, 8, 18), nil, "cancelled", "Customer requested cancellation"},
		{15, 4, 10, d(2023, 9, 2), nil, "processing", nil},
	}
	return t
}

func orderItemsTable() *Table {
	t := NewTable("order_items",
		[]Column{
			{Name: "id", Type: IntType, PrimaryKey: true},
			{Name: "order_id", Type: IntType, Ref: &ForeignRef{Table: "orders", Column: "id"}},
			{Name: "product_id", Type: IntType, Ref: &ForeignRef{Table: "products", Column: "id"}},
			{Name: "quantity", Type: IntType},
			{Name: "unit_price", Type: DecimalType},
			{Name: "discount", Type: DecimalType, Nullable: true},
		},
		[]Index{
			{Name: "PRIMARY", Column: "id"},
			{Name: "idx_order", Column: "order_id"},
			{Name: "idx_product", Column: "product_id"},
		},
	)
	t.Rows = [][]any{
		{1, 1, 3, 5, 1499.99, 0.10},
		{2, 1, 5, 5, 499.99, nil},
		{3, 2, 2, 10, 599.99, 0.05},
		{4, 2, 9, 2, 999.99, nil},
		{5, 3, 4, 5, 199.99, nil},
		{6, 4, 3, 20, 1499.99, 0.15},
		{7, 4, 8, 2, 2999.99, 0.10},
		{8, 4, 6, 100, 49.99, 0.20},
		{9, 5, 1, 25, 299.99, 0.05},
		{10, 5, 5, 10, 499.99, 0.05},
		{11, 6, 2, 5, 599.99, nil},
		{12, 7, 4, 10, 199.99, 0.10},
		{13, 7, 7, 20, 79.99, nil},
		{14, 8, 1, 5, 299.99, nil},
		{15, 9, 3, 50, 1499.99, 0.20},
		{16, 9, 5, 50, 499.99, 0.15},
		{17, 9, 8, 5, 2999.99, 0.10},
		{18, 10, 10, 10, 299.99, 0.10},
		{19, 11, 1, 3, 299.99, nil},
		{20, 12, 2, 15, 599.99, 0.10},
		{21, 12, 6, 50, 49.99, 0.05},
		{22, 13, 3, 100, 1499.99, 0.25},
		{23, 13, 8, 10, 2999.99, 0.15},
		{24, 13, 5, 100, 499.99, 0.20},
		{25, 14, 3, 5, 1499.99, nil},
		{26, 15, 4, 20, 199.99, 0.10},
	}
	return t
}
