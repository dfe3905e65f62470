// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymsync/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTime(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func sampleMember(id string) *model.Member {
	subStart := testTime(1, 9)
	subEnd := testTime(31, 9)
	return &model.Member{
		ID:        id,
		Name:      "Lena Haddad",
		Phone:     "555-0101",
		Age:       29,
		Height:    171.5,
		Weight:    63.2,
		Gender:    "female",
		Courses:   []string{"c1", "c2"},
		DietPlans: []string{"d1"},
		CourseGroups: []model.ItemGroup{
			{ID: "g1", Title: "Morning", Items: []string{"c1"}, CreatedAt: testTime(2, 8)},
			{ID: "g2", Items: []string{"c2", "c1"}, CreatedAt: testTime(3, 8)},
		},
		DietPlanGroups:    []model.ItemGroup{{ID: "g3", Title: "Cut", Items: []string{"d1"}, CreatedAt: testTime(2, 8)}},
		SubscriptionStart: &subStart,
		SubscriptionEnd:   &subEnd,
		CreatedAt:         testTime(1, 10),
		UpdatedAt:         testTime(5, 10),
	}
}

func TestMemberRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := sampleMember("m1")
	require.NoError(t, s.PutMember(ctx, want))

	got, err := s.MemberByID(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestMemberNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.MemberByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemberEmptyCollections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := &model.Member{ID: "m2", Name: "Omar", CreatedAt: testTime(1, 1), UpdatedAt: testTime(1, 1)}
	require.NoError(t, s.PutMember(ctx, m))

	got, err := s.MemberByID(ctx, "m2")
	require.NoError(t, err)
	require.NotNil(t, got.Courses)
	require.Empty(t, got.Courses)
	require.NotNil(t, got.CourseGroups)
	require.Empty(t, got.CourseGroups)
	require.Nil(t, got.SubscriptionStart)
}

func TestSearchMembers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := sampleMember("m1")
	b := sampleMember("m2")
	b.Name = "Karim Aoun"
	b.Phone = "555-0999"
	require.NoError(t, s.PutMember(ctx, a))
	require.NoError(t, s.PutMember(ctx, b))

	byName, err := s.SearchMembers(ctx, "Karim")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "m2", byName[0].ID)

	byPhone, err := s.SearchMembers(ctx, "0101")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	require.Equal(t, "m1", byPhone[0].ID)
}

func TestDeleteMember(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMember(ctx, sampleMember("m1")))
	require.NoError(t, s.DeleteMember(ctx, "m1"))
	_, err := s.MemberByID(ctx, "m1")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent id is tolerated.
	require.NoError(t, s.DeleteMember(ctx, "m1"))
}

func TestCourseAndDietPlanRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	course := &model.Course{ID: "c1", Name: "Yoga", CreatedAt: testTime(1, 1)}
	require.NoError(t, s.PutCourse(ctx, course))
	gotCourse, err := s.CourseByID(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, course, gotCourse)

	plan := &model.DietPlan{ID: "d1", Name: "Keto Diet", CreatedAt: testTime(1, 1)}
	require.NoError(t, s.PutDietPlan(ctx, plan))
	gotPlan, err := s.DietPlanByID(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, plan, gotPlan)

	require.NoError(t, s.DeleteCourse(ctx, "c1"))
	_, err = s.CourseByID(ctx, "c1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSalesBetween(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, day := range []int{1, 10, 20} {
		sale := &model.Sale{
			ID:          model.NewID(),
			BuyerName:   "Buyer",
			ProductID:   "p1",
			ProductName: "Protein Bar",
			Quantity:    i + 1,
			UnitPrice:   2,
			TotalPrice:  float64(2 * (i + 1)),
			CreatedAt:   testTime(day, 12),
			UpdatedAt:   testTime(day, 12),
		}
		require.NoError(t, s.PutSale(ctx, sale))
	}

	got, err := s.SalesBetween(ctx, testTime(5, 0), testTime(15, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 2, got[0].Quantity)
}

func TestSalesBetweenFractionalSeconds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// A sale half a second into the range's first second must be inside
	// a range whose bounds are whole seconds.
	at := time.Date(2026, 3, 10, 0, 0, 0, 500_000_000, time.UTC)
	sale := &model.Sale{
		ID:          "s1",
		BuyerName:   "Buyer",
		ProductID:   "p1",
		ProductName: "Protein Bar",
		Quantity:    1,
		UnitPrice:   2,
		TotalPrice:  2,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	require.NoError(t, s.PutSale(ctx, sale))

	got, err := s.SalesBetween(ctx,
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].ID)
}

func TestSearchCatalogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCourse(ctx, &model.Course{ID: "c1", Name: "Yoga", CreatedAt: testTime(1, 1)}))
	require.NoError(t, s.PutCourse(ctx, &model.Course{ID: "c2", Name: "CrossFit", CreatedAt: testTime(1, 1)}))
	require.NoError(t, s.PutDietPlan(ctx, &model.DietPlan{ID: "d1", Name: "Keto Diet", CreatedAt: testTime(1, 1)}))

	courses, err := s.SearchCourses(ctx, "yog")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "c1", courses[0].ID)

	plans, err := s.SearchDietPlans(ctx, "keto")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, "d1", plans[0].ID)

	none, err := s.SearchCourses(ctx, "swimming")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAuthStateRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	state, err := s.AuthState(ctx)
	require.NoError(t, err)
	require.False(t, state.Authenticated)

	loginTime := testTime(1, 8)
	require.NoError(t, s.SetAuthState(ctx, model.AuthState{Authenticated: true, LoginTime: &loginTime}))

	state, err = s.AuthState(ctx)
	require.NoError(t, err)
	require.True(t, state.Authenticated)
	require.NotNil(t, state.LoginTime)
	require.True(t, state.LoginTime.Equal(loginTime))

	require.NoError(t, s.SetAuthState(ctx, model.AuthState{}))
	state, err = s.AuthState(ctx)
	require.NoError(t, err)
	require.False(t, state.Authenticated)
	require.Nil(t, state.LoginTime)
}
