// Package resolve implements the tenant-over-base fallback that every
// overridable field group shares. A company-scoped override row may leave a
// field unset, in which case the base (company-null) row's value applies.
// The same algorithm serves every field group rather than being repeated
// per feature.
package resolve

// Value returns the effective field value. hasTenant reports whether the
// lookup was company-scoped at all; override is the tenant row's value
// (nil when unset or when no tenant row exists) and base is the base row's
// value.
func Value[T any](hasTenant bool, override, base *T) *T {
	if hasTenant && override != nil {
		return override
	}
	return base
}

// Custom reports whether the edit control for the field should be live:
// the base scope is always editable, a tenant scope only once the field
// has been customised.
func Custom[T any](hasTenant bool, override *T) bool {
	return !hasTenant || override != nil
}

// Flag resolves the chain-style selections (content, image collection)
// whose override marker is an explicit boolean on the tenant row rather
// than a nullable column value.
func Flag(hasTenant, custom bool) bool {
	return !hasTenant || custom
}
