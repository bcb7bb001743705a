package ai

import (
	"fmt"

	"checkin/internal/captcha"

	"gocv.io/x/gocv"
)

// decode turns encoded bytes into a Mat. The caller closes it.
func decode(data []byte, flags gocv.IMReadFlag) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty buffer", captcha.ErrDecode)
	}
	mat, err := gocv.IMDecode(data, flags)
	if err != nil {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %v", captcha.ErrDecode, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: decoded image is empty", captcha.ErrDecode)
	}
	return mat, nil
}

// encode writes mat as JPEG.
func encode(mat gocv.Mat) (captcha.Image, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return captcha.Image{}, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return captcha.Image{Data: data, Width: mat.Cols(), Height: mat.Rows(), Format: "jpeg"}, nil
}
