package ai

import (
	"fmt"
	"image"
	"image/color"

	"checkin/internal/captcha"

	"gocv.io/x/gocv"
)

// Annotate draws every candidate box in red and the assigned ones in green
// with their sprite number, returning a JPEG buffer.
func (s *ImagerService) Annotate(background captcha.Image, boxes []captcha.BoundingBox, a *captcha.Assignment) ([]byte, error) {
	red := color.RGBA{R: 255, G: 0, B: 0, A: 0}
	green := color.RGBA{R: 0, G: 200, B: 0, A: 0}

	mat, err := decode(background.Data, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	for _, box := range boxes {
		err = gocv.Rectangle(&mat, image.Rect(box.X1, box.Y1, box.X2, box.Y2), red, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}
	}

	if a != nil {
		for sprite := 1; sprite <= captcha.SpriteCount; sprite++ {
			match, ok := a.Get(sprite)
			if !ok {
				continue
			}
			box := match.Box
			err = gocv.Rectangle(&mat, image.Rect(box.X1, box.Y1, box.X2, box.Y2), green, 2)
			if err != nil {
				return nil, fmt.Errorf("failed to draw rectangle: %v", err)
			}

			label := fmt.Sprintf("%d (%.2f)", sprite, match.Score.Similarity)
			err = gocv.PutText(&mat, label, image.Pt(box.X1, box.Y1-5), gocv.FontHersheySimplex, 0.4, green, 1)
			if err != nil {
				return nil, fmt.Errorf("failed to draw text: %v", err)
			}
		}
	}

	img, err := encode(mat)
	if err != nil {
		return nil, err
	}
	return img.Data, nil
}
