package dialect

import "testing"

func TestGet_BuiltinDialects(t *testing.T) {
	for _, name := range []string{ANSI, Postgres, MySQL, Snowflake, BigQuery, Redshift, MSSQL, Oracle, SQLite} {
		d, ok := Get(name)
		if !ok {
			t.Errorf("dialect %s not registered", name)
			continue
		}
		if d.Name != name {
			t.Errorf("dialect name = %q, want %q", d.Name, name)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	if _, ok := Get("does-not-exist"); ok {
		t.Error("expected lookup miss for unknown dialect")
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		dialect string
		in      string
		want    string
	}{
		{Postgres, "MyTable", "mytable"},
		{MySQL, "MyTable", "mytable"},
		{Snowflake, "MyTable", "MYTABLE"},
		{Oracle, "MyTable", "MYTABLE"},
		{BigQuery, "MyTable", "MyTable"},
	}
	for _, tt := range tests {
		d := MustGet(tt.dialect)
		if got := d.NormalizeName(tt.in); got != tt.want {
			t.Errorf("%s.NormalizeName(%q) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}

func TestFunctionLineageType(t *testing.T) {
	d := MustGet(ANSI)

	tests := []struct {
		fn   string
		want Type
	}{
		{"sum", LineageAggregate},
		{"SUM", LineageAggregate},
		{"count", LineageAggregate},
		{"row_number", LineageWindow},
		{"lag", LineageWindow},
		{"now", LineageGenerator},
		{"current_timestamp", LineageGenerator},
		{"upper", LineagePassthrough},
		{"no_such_function", LineagePassthrough},
	}
	for _, tt := range tests {
		if got := d.FunctionLineageType(tt.fn); got != tt.want {
			t.Errorf("FunctionLineageType(%q) = %v, want %v", tt.fn, got, tt.want)
		}
	}
}

func TestFallbackChains(t *testing.T) {
	if len(MustGet(ANSI).Fallbacks) != 0 {
		t.Error("ansi should have no fallbacks")
	}
	rs := MustGet(Redshift)
	if len(rs.Fallbacks) == 0 || rs.Fallbacks[0] != Postgres {
		t.Errorf("redshift fallbacks = %v, want postgres first", rs.Fallbacks)
	}
}

func TestList_Sorted(t *testing.T) {
	names := List()
	if len(names) < 9 {
		t.Fatalf("expected at least 9 dialects, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("List() not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}
