package store

import "testing"

func TestScopeKeyAndEqual(t *testing.T) {
	todo := "col-todo"
	doing := "col-doing"

	cases := []struct {
		name  string
		a, b  Scope
		equal bool
		key   bool
	}{
		{name: "same column", a: CardsScope("b1", &todo), b: CardsScope("b1", &todo), equal: true, key: true},
		{name: "different columns", a: CardsScope("b1", &todo), b: CardsScope("b1", &doing), equal: false, key: false},
		{name: "unfiled vs column", a: CardsScope("b1", nil), b: CardsScope("b1", &todo), equal: false, key: false},
		{name: "unfiled shares board lock with columns", a: CardsScope("b1", nil), b: ColumnsScope("b1"), equal: false, key: true},
		{name: "unfiled on two boards", a: CardsScope("b1", nil), b: CardsScope("b2", nil), equal: false, key: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.equal {
				t.Fatalf("Equal() = %v, want %v", got, tc.equal)
			}
			if got := tc.a.Key() == tc.b.Key(); got != tc.key {
				t.Fatalf("shared key = %v, want %v (%s vs %s)", got, tc.key, tc.a.Key(), tc.b.Key())
			}
		})
	}
}
