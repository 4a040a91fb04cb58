package viewmux

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDescriptorEqual(t *testing.T) {
	const eps = 1e-12
	base := func() SceneDescriptor {
		return SceneDescriptor{
			SceneName:     "robot.glb",
			Camera:        Camera{Target: mgl64.Vec3{0, 1, 0}, Yaw: 0.5, Pitch: -0.25, Distance: 4},
			AnimationTime: 1.25,
			Selection:     []string{"arm", "leg"},
			Overrides: map[string]map[string]any{
				"arm": {"color": "#ff0000", "opacity": 0.5},
			},
			Extra: map[string]any{"wireframe": true, "lod": 2},
		}
	}

	tests := []struct {
		name   string
		modify func(d *SceneDescriptor)
		want   bool
	}{
		{"identical", func(*SceneDescriptor) {}, true},
		{"rounding noise", func(d *SceneDescriptor) { d.Camera.Yaw += 1e-17 }, true},
		{"int and float", func(d *SceneDescriptor) { d.Extra["lod"] = 2.0 }, true},
		{"selection cleared", func(d *SceneDescriptor) { d.Selection = nil }, false},
		{"scene", func(d *SceneDescriptor) { d.SceneName = "car.glb" }, false},
		{"yaw", func(d *SceneDescriptor) { d.Camera.Yaw = 0.6 }, false},
		{"target", func(d *SceneDescriptor) { d.Camera.Target[2] = 1 }, false},
		{"animation time", func(d *SceneDescriptor) { d.AnimationTime = 1.5 }, false},
		{"selection order", func(d *SceneDescriptor) { d.Selection = []string{"leg", "arm"} }, false},
		{"override value", func(d *SceneDescriptor) { d.Overrides["arm"]["opacity"] = 0.75 }, false},
		{"override key", func(d *SceneDescriptor) { d.Overrides["leg"] = map[string]any{"opacity": 1} }, false},
		{"extra type", func(d *SceneDescriptor) { d.Extra["wireframe"] = "true" }, false},
		{"interaction", func(d *SceneDescriptor) { d.LatestInteraction = time.Unix(1, 0) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := base(), base()
			tt.modify(&b)
			if got := a.Equal(b, eps); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if got := b.Equal(a, eps); got != tt.want {
				t.Errorf("reversed Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDescriptorEqualEmptyCollections(t *testing.T) {
	a := SceneDescriptor{SceneName: "x"}
	b := SceneDescriptor{
		SceneName: "x",
		Selection: []string{},
		Overrides: map[string]map[string]any{},
		Extra:     map[string]any{},
	}
	if !a.Equal(b, 0) {
		t.Error("nil and empty collections compare unequal")
	}
}

func TestDescriptorEqualAfterJSON(t *testing.T) {
	d := SceneDescriptor{
		SceneName: "robot.glb",
		Camera:    Camera{Yaw: 0.1, Distance: 3},
		Overrides: map[string]map[string]any{"arm": {"scale": 2, "tags": []any{"a", 1}}},
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var back SceneDescriptor
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !d.Equal(back, 1e-12) {
		t.Errorf("descriptor changed across JSON: %s", data)
	}
}

func TestDescriptorJSONFieldNames(t *testing.T) {
	d := SceneDescriptor{SceneName: "a.glb", LatestInteraction: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"sceneName", "camera", "animationTime", "latestInteractionTime"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing field %q in %s", k, data)
		}
	}
	if _, ok := fields["selection"]; ok {
		t.Errorf("empty selection encoded: %s", data)
	}
}
