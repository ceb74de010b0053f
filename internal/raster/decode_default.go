//go:build !gocv

package raster

func platformDecoders() []Decoder { return nil }
