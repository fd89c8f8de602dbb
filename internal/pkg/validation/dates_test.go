package validation

import (
	"reflect"
	"testing"
)

func TestFindDates(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"12/09/2024", []string{"2024-09-12"}},
		{"12-09-2024", []string{"2024-09-12"}},
		{"12.09.24", []string{"2024-09-12"}},
		{"2024-09-12", []string{"2024-09-12"}},
		{"2024-09-12T21:30:00", []string{"2024-09-12"}},
		{"2024-09-12 00:00:00", []string{"2024-09-12"}},
		{"jueves, 12 de septiembre de 2024", []string{"2024-09-12"}},
		{"Sábado 7 de Setiembre de 2024", []string{"2024-09-07"}},
		{"12 sep 2024", []string{"2024-09-12"}},
		{"Sorteo del 3 de marzo del 2021", []string{"2021-03-03"}},
		{"31/02/2024", nil},
		{"sin fecha 12 34 45", nil},
		{"12/09/2024 y 12-09-2024", []string{"2024-09-12"}},
		{"01/02/2024 - 03/02/2024", []string{"2024-02-01", "2024-02-03"}},
	}

	for _, tt := range tests {
		var got []string
		for _, d := range FindDates(tt.input) {
			got = append(got, d.String())
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("FindDates(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestStripDates(t *testing.T) {
	got := IntTokens(StripDates("12/09/2024 03 11 22 29 34 41 C 07 R 3"))
	want := []int{3, 11, 22, 29, 34, 41, 7, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IntTokens(StripDates(...)) = %v, want %v", got, want)
	}
}

func TestDateSpans_EndPointsPastToken(t *testing.T) {
	s := "Resultados 12/09/2024: 1 2 3"
	spans := DateSpans(s)
	if len(spans) != 1 {
		t.Fatalf("DateSpans(%q) = %v, want one span", s, spans)
	}
	if rest := CleanText(s)[spans[0].End:]; rest != ": 1 2 3" {
		t.Errorf("text after date token = %q, want %q", rest, ": 1 2 3")
	}
	if spans := DateSpans("no date here"); len(spans) != 0 {
		t.Errorf("DateSpans without a date = %v", spans)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Miércoles  11\t de  diciembre ", "Miercoles 11 de diciembre"},
		{"Año\x00 2024", "Ano 2024"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.input); got != tt.expected {
			t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDateSpans(t *testing.T) {
	s := "12/09/2024 1 2 3 14/09/2024 4 5 6 12/09/2024"
	spans := DateSpans(s)
	if len(spans) != 3 {
		t.Fatalf("DateSpans(%q) returned %d spans, want 3", s, len(spans))
	}
	clean := CleanText(s)
	if got := clean[spans[0].End:spans[1].Start]; got != " 1 2 3 " {
		t.Errorf("text between first spans = %q, want %q", got, " 1 2 3 ")
	}
	if spans[1].Date.String() != "2024-09-14" {
		t.Errorf("second span date = %s, want 2024-09-14", spans[1].Date)
	}
}
