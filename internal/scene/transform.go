package scene

import "fmt"

// Transform holds the six channels of an object's local transform. Rotations
// are in degrees, applied in XYZ order.
type Transform struct {
	Translate [3]float64
	Rotate    [3]float64
}

// Values returns the channels in TransformAttrs order.
func (t Transform) Values() [6]float64 {
	return [6]float64{
		t.Translate[0], t.Translate[1], t.Translate[2],
		t.Rotate[0], t.Rotate[1], t.Rotate[2],
	}
}

// Color is a linear RGB triple in 0..1.
type Color [3]float64

// IsBlack reports whether all channels are zero, which the host uses for "no override".
func (c Color) IsBlack() bool {
	return c[0] == 0 && c[1] == 0 && c[2] == 0
}

// ReadTransform reads the six transform channels of object.
func ReadTransform(gw Gateway, object string) (Transform, error) {
	var vals [6]float64
	for i, attr := range TransformAttrs {
		v, err := scalar(gw, object, attr)
		if err != nil {
			return Transform{}, err
		}
		vals[i] = v
	}
	return Transform{
		Translate: [3]float64{vals[0], vals[1], vals[2]},
		Rotate:    [3]float64{vals[3], vals[4], vals[5]},
	}, nil
}

// WriteTransform writes the six transform channels onto object. It stops at the
// first failing channel.
func WriteTransform(gw Gateway, object string, t Transform) error {
	vals := t.Values()
	for i, attr := range TransformAttrs {
		if err := gw.SetAttr(object, attr, vals[i]); err != nil {
			return fmt.Errorf("set %s.%s: %w", object, attr, err)
		}
	}
	return nil
}

// ReadColor reads the override color of object.
func ReadColor(gw Gateway, object string) (Color, error) {
	v, err := gw.GetAttr(object, AttrOverrideColorRGB)
	if err != nil {
		return Color{}, err
	}
	if len(v) != 3 {
		return Color{}, fmt.Errorf("%s.%s: expected 3 values, got %d", object, AttrOverrideColorRGB, len(v))
	}
	return Color{v[0], v[1], v[2]}, nil
}

// WriteColor enables the RGB display override on object and sets its color.
func WriteColor(gw Gateway, object string, c Color) error {
	if err := gw.SetAttr(object, AttrOverrideEnabled, 1); err != nil {
		return err
	}
	if err := gw.SetAttr(object, AttrOverrideRGBColors, 1); err != nil {
		return err
	}
	return gw.SetAttr(object, AttrOverrideColorRGB, c[0], c[1], c[2])
}

// WriteScale sets the uniform display scale of a locator.
func WriteScale(gw Gateway, object string, scale float64) error {
	for _, attr := range ScaleAttrs {
		if err := gw.SetAttr(object, attr, scale); err != nil {
			return fmt.Errorf("set %s.%s: %w", object, attr, err)
		}
	}
	return nil
}

// ReadScale returns the X display scale of a locator.
func ReadScale(gw Gateway, object string) (float64, error) {
	return scalar(gw, object, AttrLocalScaleX)
}

// IsVisible reports the visibility attribute of object.
func IsVisible(gw Gateway, object string) (bool, error) {
	v, err := scalar(gw, object, AttrVisibility)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// SetVisible shows or hides object.
func SetVisible(gw Gateway, object string, visible bool) error {
	v := 0.0
	if visible {
		v = 1
	}
	return gw.SetAttr(object, AttrVisibility, v)
}

func scalar(gw Gateway, object, attr string) (float64, error) {
	v, err := gw.GetAttr(object, attr)
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, fmt.Errorf("%s.%s: empty value", object, attr)
	}
	return v[0], nil
}
