package captcha

import "fmt"

// MapToScreen converts a position in raw image pixels into an offset from
// the center of the element displaying that image. Each axis is scaled
// independently.
func MapToScreen(pos Point, g Geometry) (dx, dy int, err error) {
	if g.Raw.Width <= 0 || g.Raw.Height <= 0 {
		return 0, 0, fmt.Errorf("captcha: invalid raw size %vx%v", g.Raw.Width, g.Raw.Height)
	}
	if g.Display.Width <= 0 || g.Display.Height <= 0 {
		return 0, 0, fmt.Errorf("captcha: invalid display size %vx%v", g.Display.Width, g.Display.Height)
	}

	x := -g.Display.Width/2 + float64(pos.X)/g.Raw.Width*g.Display.Width
	y := -g.Display.Height/2 + float64(pos.Y)/g.Raw.Height*g.Display.Height
	return int(x), int(y), nil
}
