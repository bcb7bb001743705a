package ai

import (
	"fmt"
	"image"

	"checkin/internal/captcha"

	"gocv.io/x/gocv"
)

// ImagerService crops and splits encoded images.
type ImagerService struct{}

func NewImagerService() *ImagerService {
	return &ImagerService{}
}

// Crop returns the part of img inside box, clipped to the image bounds.
func (s *ImagerService) Crop(img captcha.Image, box captcha.BoundingBox) (captcha.Image, error) {
	mat, err := decode(img.Data, gocv.IMReadColor)
	if err != nil {
		return captcha.Image{}, err
	}
	defer mat.Close()

	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	if rect.Empty() {
		return captcha.Image{}, fmt.Errorf("box %s lies outside the %dx%d image", box, mat.Cols(), mat.Rows())
	}

	region := mat.Region(rect)
	defer region.Close()
	return encode(region)
}

// SplitThirds cuts the sprite strip into three equal-width pieces, left to
// right. The last piece absorbs no remainder columns.
func (s *ImagerService) SplitThirds(strip captcha.Image) ([captcha.SpriteCount]captcha.Image, error) {
	var parts [captcha.SpriteCount]captcha.Image

	mat, err := decode(strip.Data, gocv.IMReadColor)
	if err != nil {
		return parts, err
	}
	defer mat.Close()

	width := mat.Cols() / captcha.SpriteCount
	if width == 0 {
		return parts, fmt.Errorf("%w: sprite strip is %d pixels wide", captcha.ErrDecode, mat.Cols())
	}

	for i := range parts {
		region := mat.Region(image.Rect(width*i, 0, width*(i+1), mat.Rows()))
		part, err := encode(region)
		region.Close()
		if err != nil {
			return parts, err
		}
		parts[i] = part
	}
	return parts, nil
}
