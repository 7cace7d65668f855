package issue

import "testing"

func TestNormalizeOffset(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"0", 0},
		{"49", 0},
		{"50", 50},
		{"175", 150},
		{"-50", 0},
		{"abc", 0},
		{"10000001", 0},
		{"10000000", 10000000},
	}

	for _, tt := range tests {
		if got := NormalizeOffset(tt.raw); got != tt.want {
			t.Errorf("NormalizeOffset(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestLastPageOffset(t *testing.T) {
	if got := LastPageOffset(120); got != 70 {
		t.Errorf("LastPageOffset(120) = %d, want 70", got)
	}
	if got := LastPageOffset(10); got != 0 {
		t.Errorf("LastPageOffset(10) = %d, want 0", got)
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		total  int
		sort   string
		want   string
	}{
		{
			name:  "first of several pages",
			total: 120,
			want: `<a href="index.html?offset=0">First Page</a> | ` +
				`Displaying from 0 to 50 of 120 | ` +
				`<a href="index.html?offset=50">Next Page</a>`,
		},
		{
			name:   "last page",
			offset: 100,
			total:  120,
			want: `<a href="index.html?offset=0">First Page</a> | ` +
				`<a href="index.html?offset=50">Previous Page</a> | ` +
				`Displaying from 100 to 120 of 120`,
		},
		{
			name:  "sort carried in links",
			total: 10,
			sort:  "created",
			want: `<a href="index.html?offset=0&amp;sort=created">First Page</a> | ` +
				`Displaying from 0 to 10 of 10`,
		},
		{
			name: "empty",
			want: `<a href="index.html?offset=0">First Page</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Pagination(tt.offset, tt.total, tt.sort); got != tt.want {
				t.Errorf("Pagination() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}
