package specification

import "gorm.io/gorm"

// Specification narrows a query. Implementations append WHERE/ORDER clauses
// to the passed builder.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
