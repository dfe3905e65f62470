// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymsync/model"
	"github.com/gymdesk/gymsync/remotepg"
)

func TestEncodeTextArray(t *testing.T) {
	cases := []struct {
		name  string
		items []string
		want  string
	}{
		{"nil", nil, "{}"},
		{"empty", []string{}, "{}"},
		{"single", []string{"c1"}, `{"c1"}`},
		{"multiple", []string{"c1", "c2"}, `{"c1","c2"}`},
		{"quote escaped", []string{`a"b`}, `{"a\"b"}`},
		{"backslash escaped", []string{`a\b`}, `{"a\\b"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, EncodeTextArray(tc.items))
		})
	}
}

func TestDecodeTextArray(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty literal", "{}", []string{}},
		{"quoted", `{"c1","c2"}`, []string{"c1", "c2"}},
		{"bare elements", `{c1,c2}`, []string{"c1", "c2"}},
		{"escapes", `{"a\"b","a\\b"}`, []string{`a"b`, `a\b`}},
		{"comma inside quotes", `{"a,b","c"}`, []string{"a,b", "c"}},
		{"garbage", "not an array", []string{}},
		{"blank", "", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DecodeTextArray(tc.in))
		})
	}
}

func TestTextArrayRoundTrip(t *testing.T) {
	for _, items := range [][]string{
		{},
		{"c1"},
		{"c1", "c2", "c3"},
		{`weird"id`, `back\slash`},
	} {
		require.Equal(t, items, DecodeTextArray(EncodeTextArray(items)))
	}
}

func wireSampleMember() *model.Member {
	subStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &model.Member{
		ID:      "m1",
		Name:    "Lena Haddad",
		Phone:   "555-0101",
		Age:     29,
		Height:  171.5,
		Weight:  63.2,
		Gender:  "female",
		Courses: []string{"c1", "c2"},
		DietPlans: []string{
			"d1",
		},
		CourseGroups: []model.ItemGroup{
			{ID: "g1", Title: "Morning", Items: []string{"c1"}, CreatedAt: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)},
		},
		DietPlanGroups:    []model.ItemGroup{},
		SubscriptionStart: &subStart,
		CreatedAt:         time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:         time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestMemberWireShape(t *testing.T) {
	rec := MemberToWire(wireSampleMember())

	require.Equal(t, "m1", rec["id"])
	require.Equal(t, `{"c1","c2"}`, rec["courses"])
	require.Equal(t, `{"d1"}`, rec["diet_plans"])
	require.Equal(t, "2026-01-01T00:00:00Z", rec["subscription_start"])
	require.Nil(t, rec["subscription_end"])
	require.Equal(t, "2026-01-05T10:00:00Z", rec["updated_at"])

	// Groups travel as JSON text.
	groups, ok := rec["courses_groups"].(string)
	require.True(t, ok)
	var parsed []model.ItemGroup
	require.NoError(t, json.Unmarshal([]byte(groups), &parsed))
	require.Len(t, parsed, 1)
	require.Equal(t, "g1", parsed[0].ID)
}

func TestMemberWireRoundTrip(t *testing.T) {
	want := wireSampleMember()
	got, err := MemberFromWire(MemberToWire(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestMemberWireRoundTripThroughJSON(t *testing.T) {
	// Queued payloads go through JSON, which turns numbers into float64.
	want := wireSampleMember()
	data, err := json.Marshal(MemberToWire(want))
	require.NoError(t, err)

	var rec remotepg.Record
	require.NoError(t, json.Unmarshal(data, &rec))

	got, err := MemberFromWire(rec)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestMemberFromWireMissingID(t *testing.T) {
	_, err := MemberFromWire(remotepg.Record{"name": "nobody"})
	require.Error(t, err)
}

func TestSaleWireRoundTrip(t *testing.T) {
	want := &model.Sale{
		ID:          "s1",
		BuyerName:   "Walk-in",
		ProductID:   "p1",
		ProductName: "Protein Bar",
		Quantity:    3,
		UnitPrice:   2.5,
		TotalPrice:  7.5,
		CreatedAt:   time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	rec := SaleToWire(want)
	require.Equal(t, "Walk-in", rec["buyer_name"])
	require.Equal(t, "p1", rec["product_id"])
	require.Equal(t, 2.5, rec["unit_price"])
	require.Equal(t, 7.5, rec["total_price"])

	got, err := SaleFromWire(rec)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestProductWireRoundTrip(t *testing.T) {
	want := &model.Product{
		ID:        "p1",
		Name:      "Shaker",
		Quantity:  7,
		Price:     9.99,
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	}
	got, err := ProductFromWire(ProductToWire(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCourseWireTimestampsFromPgx(t *testing.T) {
	// pgx hands back typed values rather than strings for some columns;
	// the decoder accepts both.
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := CourseFromWire(remotepg.Record{"id": "c1", "name": "Yoga", "created_at": created})
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(created))

	got, err = CourseFromWire(remotepg.Record{"id": "c1", "name": "Yoga", "created_at": "2026-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(created))
}
