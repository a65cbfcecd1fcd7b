package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh identifier. Every store backend uses ObjectID hex strings so that
// identifiers have one shape regardless of where they are persisted.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the identifier shape produced by NewID.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
