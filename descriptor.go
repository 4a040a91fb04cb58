package viewmux

import (
	"reflect"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera is an orbit camera.
type Camera struct {
	// Target is the point the camera orbits.
	Target mgl64.Vec3 `json:"target"`

	// Yaw and Pitch are in radians.
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`

	Distance    float64 `json:"distance"`
	FieldOfView float64 `json:"fieldOfView,omitempty"`
}

// SceneDescriptor describes what one viewer should show at one instant.
// It is sent to the backend as the desc of a render command.
//
// Descriptors are values: the scheduler keeps the last one it was given
// and compares new ones with Equal.
type SceneDescriptor struct {
	SceneName     string  `json:"sceneName"`
	Camera        Camera  `json:"camera"`
	AnimationTime float64 `json:"animationTime"`

	// Selection lists highlighted element ids.
	Selection []string `json:"selection,omitempty"`

	// Overrides holds per-element field overrides, keyed by element id.
	Overrides map[string]map[string]any `json:"overrides,omitempty"`

	// Extra carries backend-specific fields through unchanged.
	Extra map[string]any `json:"extra,omitempty"`

	// LatestInteraction is when the user last manipulated this view.
	// Two recent interactions in a row claim the realtime slot.
	LatestInteraction time.Time `json:"latestInteractionTime,omitzero"`
}

// Equal reports whether d and o describe the same render. Numbers compare
// within the relative tolerance eps; everything else compares exactly.
func (d SceneDescriptor) Equal(o SceneDescriptor, eps float64) bool {
	return d.SceneName == o.SceneName &&
		d.Camera.equal(o.Camera, eps) &&
		floatEqual(d.AnimationTime, o.AnimationTime, eps) &&
		slices.Equal(d.Selection, o.Selection) &&
		valueEqual(d.Overrides, o.Overrides, eps) &&
		valueEqual(d.Extra, o.Extra, eps) &&
		d.LatestInteraction.Equal(o.LatestInteraction)
}

func (c Camera) equal(o Camera, eps float64) bool {
	return c.Target.ApproxEqualThreshold(o.Target, eps) &&
		floatEqual(c.Yaw, o.Yaw, eps) &&
		floatEqual(c.Pitch, o.Pitch, eps) &&
		floatEqual(c.Distance, o.Distance, eps) &&
		floatEqual(c.FieldOfView, o.FieldOfView, eps)
}

func floatEqual(a, b, eps float64) bool {
	return mgl64.FloatEqualThreshold(a, b, eps)
}

// valueEqual compares JSON-shaped values: maps, slices and scalars.
// Numbers of any kind compare as float64 within eps.
func valueEqual(a, b any, eps float64) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	return deepValueEqual(va, vb, eps)
}

func deepValueEqual(a, b reflect.Value, eps float64) bool {
	for a.IsValid() && (a.Kind() == reflect.Interface || a.Kind() == reflect.Pointer) {
		if a.IsNil() {
			break
		}
		a = a.Elem()
	}
	for b.IsValid() && (b.Kind() == reflect.Interface || b.Kind() == reflect.Pointer) {
		if b.IsNil() {
			break
		}
		b = b.Elem()
	}
	if empty(a) || empty(b) {
		return empty(a) && empty(b)
	}

	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && floatEqual(fa, fb, eps)
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch a.Kind() {
	case reflect.Map:
		if a.Len() != b.Len() || a.Type().Key() != b.Type().Key() {
			return false
		}
		it := a.MapRange()
		for it.Next() {
			vb := b.MapIndex(it.Key())
			if !vb.IsValid() || !deepValueEqual(it.Value(), vb, eps) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := range a.Len() {
			if !deepValueEqual(a.Index(i), b.Index(i), eps) {
				return false
			}
		}
		return true
	case reflect.Struct:
		if a.Type() != b.Type() {
			return false
		}
		for i := range a.NumField() {
			if !a.Type().Field(i).IsExported() {
				continue
			}
			if !deepValueEqual(a.Field(i), b.Field(i), eps) {
				return false
			}
		}
		return true
	default:
		if !a.Type().Comparable() || a.Type() != b.Type() {
			return reflect.DeepEqual(a.Interface(), b.Interface())
		}
		return a.Interface() == b.Interface()
	}
}

// empty reports whether v is absent, nil, or an empty map or slice. An
// empty map equals a nil one.
func empty(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		return v.Len() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}
