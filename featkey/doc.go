// Package featkey implements fixed size, bit packed shader permutation keys.
//
// A property table is an ordered list of [Property] values laid out once with
// [Layout]. A [Key] stores one value per property plus the hash of a [FeatureSet],
// a list of named toggles that live outside the fixed layout.
package featkey
