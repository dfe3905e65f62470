// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package remotepg

import "github.com/gymdesk/gymsync/model"

// Remote table names are namespaced to keep the hosted database tidy when
// it is shared with other applications.
var remoteTables = map[model.EntityType]string{
	model.EntityMembers:   "gym_members",
	model.EntityCourses:   "gym_courses",
	model.EntityDietPlans: "gym_diet_plans",
	model.EntityProducts:  "gym_products",
	model.EntitySales:     "gym_sales",
}

// TableFor maps a local entity type to its remote table identifier.
// Unknown types map to the empty string.
func TableFor(entity model.EntityType) string {
	return remoteTables[entity]
}
