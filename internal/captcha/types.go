// Package captcha solves click-order image puzzles: it detects candidate
// objects in a background image, matches the reference sprites against
// them and clicks the matches in order, refreshing the puzzle on failure.
package captcha

import "fmt"

// SpriteCount is the number of reference sprites in one puzzle.
const SpriteCount = 3

// Image is an encoded raster together with its decoded dimensions.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Size returns the image dimensions in pixel-buffer units.
func (img Image) Size() Size {
	return Size{Width: float64(img.Width), Height: float64(img.Height)}
}

// Point is a pixel position.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// Size is a width/height pair. Display sizes come from CSS and may be
// fractional.
type Size struct {
	Width  float64
	Height float64
}

// BoundingBox is a detector-proposed region in raw image pixels.
type BoundingBox struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Valid reports whether the box has a positive area.
func (b BoundingBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Center returns the integer pixel center of the box.
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// Score is the outcome of comparing one sprite with one candidate.
type Score struct {
	Similarity float64
	Votes      int
}

// Geometry relates the downloaded image to the element rendered on screen.
type Geometry struct {
	Raw     Size
	Display Size
}
