package protocol

import "strings"

// Feature is one independently-togglable capability bit exchanged in
// remote_configure's code1 field.
type Feature uint32

// Capability bits.
const (
	FeaturePing    Feature = 1 << 0
	FeatureKey     Feature = 1 << 1
	FeatureIME     Feature = 1 << 2
	FeatureVoice   Feature = 1 << 3
	FeaturePower   Feature = 1 << 5
	FeatureVolume  Feature = 1 << 6
	FeatureAppLink Feature = 1 << 9
)

var featureNames = []struct {
	bit  Feature
	name string
}{
	{FeaturePing, "PING"},
	{FeatureKey, "KEY"},
	{FeatureIME, "IME"},
	{FeatureVoice, "VOICE"},
	{FeaturePower, "POWER"},
	{FeatureVolume, "VOLUME"},
	{FeatureAppLink, "APP_LINK"},
}

// FeatureSet is a set of capability bits. The active set of a connection is
// the intersection of the client's desired set and the device-advertised
// set, fixed when the first remote_configure arrives.
type FeatureSet uint32

// DefaultFeatures is everything this client can drive.
const DefaultFeatures = FeatureSet(FeaturePing | FeatureKey | FeatureIME | FeatureVoice | FeaturePower | FeatureVolume | FeatureAppLink)

// Has reports whether f is in the set.
func (s FeatureSet) Has(f Feature) bool {
	return s&FeatureSet(f) != 0
}

// Intersect returns the features present in both sets.
func (s FeatureSet) Intersect(other FeatureSet) FeatureSet {
	return s & other
}

// Without returns the set with f removed.
func (s FeatureSet) Without(f Feature) FeatureSet {
	return s &^ FeatureSet(f)
}

// Mask returns the wire representation for code1/active fields.
func (s FeatureSet) Mask() int32 {
	return int32(s)
}

func (s FeatureSet) String() string {
	if s == 0 {
		return "none"
	}
	var names []string
	rest := s
	for _, fn := range featureNames {
		if s.Has(fn.bit) {
			names = append(names, fn.name)
			rest = rest.Without(fn.bit)
		}
	}
	if rest != 0 {
		names = append(names, "UNKNOWN")
	}
	return strings.Join(names, "|")
}
