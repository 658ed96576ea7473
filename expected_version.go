package streamstore

import "fmt"

// NoVersion is the version of a stream that has no events
const NoVersion int64 = -1

const (
	expectedVersionAny             = -2
	expectedVersionNoOrEmptyStream = -1
)

// ExpectedVersion is the optimistic concurrency precondition of a write
type ExpectedVersion struct {
	value int64
}

// ExpectAny skips the version check
func ExpectAny() ExpectedVersion {
	return ExpectedVersion{value: expectedVersionAny}
}

// ExpectNoOrEmptyStream requires that the stream does not exist yet or has
// no events (version -1)
func ExpectNoOrEmptyStream() ExpectedVersion {
	return ExpectedVersion{value: expectedVersionNoOrEmptyStream}
}

// ExpectVersion requires the stream to be at exactly the given version.
// The version must be non-negative.
func ExpectVersion(version int64) ExpectedVersion {
	if version < 0 {
		panic(fmt.Sprintf("expected version must be non-negative, got %d", version))
	}

	return ExpectedVersion{value: version}
}

// IsAny returns true if no version check should be performed
func (ev ExpectedVersion) IsAny() bool { return ev.value == expectedVersionAny }

// IsNoOrEmptyStream returns true if the stream must not exist or be empty
func (ev ExpectedVersion) IsNoOrEmptyStream() bool {
	return ev.value == expectedVersionNoOrEmptyStream
}

// IsExact returns true for a concrete version expectation
func (ev ExpectedVersion) IsExact() bool { return ev.value >= 0 }

// Value returns the version the stream has to be at. NoOrEmptyStream
// expects NoVersion; Any returns NoVersion as well but is never compared.
func (ev ExpectedVersion) Value() int64 {
	if ev.value >= 0 {
		return ev.value
	}

	return NoVersion
}

// Matches reports whether a stream at version current satisfies the expectation
func (ev ExpectedVersion) Matches(current int64) bool {
	if ev.IsAny() {
		return true
	}

	return ev.Value() == current
}

// String returns a string representation of the ExpectedVersion
func (ev ExpectedVersion) String() string {
	if ev.IsAny() {
		return "Any"
	}

	if ev.IsNoOrEmptyStream() {
		return "NoOrEmptyStream"
	}

	return fmt.Sprintf("Exact(%d)", ev.value)
}
