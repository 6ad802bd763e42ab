package forms

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/wudi/formkit/internal/testpdf"
)

func TestParseValues(t *testing.T) {
	vs, err := ParseValues([]byte(`{"patient_name":{"text":"Jane"},"is_insured":{"checked":true},"plan_type":{"choice":"PPO"}}`))
	if err != nil {
		t.Fatalf("ParseValues: %v", err)
	}
	want := Values{"patient_name": Text("Jane"), "is_insured": Checked(true), "plan_type": Choice("PPO")}
	if !reflect.DeepEqual(vs, want) {
		t.Errorf("values = %v, want %v", vs, want)
	}
	if got := vs.Names(); !reflect.DeepEqual(got, []string{"is_insured", "patient_name", "plan_type"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestParseValuesErrors(t *testing.T) {
	for _, in := range []string{
		`{"a":{}}`,
		`{"a":{"text":"x","checked":true}}`,
		`{"a":"x"}`,
		`[`,
	} {
		if _, err := ParseValues([]byte(in)); err == nil {
			t.Errorf("ParseValues(%s) succeeded", in)
		}
	}
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Text(""), `{"text":""}`},
		{Checked(false), `{"checked":false}`},
		{Choice("HMO"), `{"choice":"HMO"}`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.v)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", tt.v, err)
		}
		if string(b) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.v, b, tt.want)
		}
	}
}

func TestSnapshot(t *testing.T) {
	fields, err := ExtractFields(load(t, testpdf.FormPDF()))
	if err != nil {
		t.Fatal(err)
	}
	got := Snapshot(fields)
	want := Values{
		"patient_name":   Text("Old Name"),
		"is_insured":     Checked(false),
		"plan_type":      Choice("HMO"),
		"address.street": Text(""),
		"address.city":   Text("Springfield"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot = %v, want %v", got, want)
	}
}
