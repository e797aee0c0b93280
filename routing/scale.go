package routing

import "math"

// Scale1D maps src (length srcLen, bpp bytes/pixel) onto a buffer of
// dstLen pixels per mode, using piecewise-linear interpolation between
// neighboring source indices for differing lengths (spec §4.5 "Scaling").
func Scale1D(src []byte, srcLen, dstLen, bpp int, mode ScaleMode) []byte {
	if srcLen == dstLen || mode == ScaleNone {
		return cloneOrPad(src, dstLen*bpp)
	}
	switch mode {
	case ScaleTruncate:
		n := dstLen
		if n > srcLen {
			n = srcLen
		}
		out := make([]byte, dstLen*bpp)
		copy(out, src[:n*bpp])
		return out
	case ScalePadBlack, ScalePadRepeat:
		out := make([]byte, dstLen*bpp)
		n := srcLen
		if n > dstLen {
			n = dstLen
		}
		copy(out, src[:n*bpp])
		if mode == ScalePadRepeat && srcLen > 0 {
			for i := n; i < dstLen; i++ {
				copy(out[i*bpp:(i+1)*bpp], src[(i%srcLen)*bpp:(i%srcLen+1)*bpp])
			}
		}
		return out
	default: // fit, fill, stretch all reduce to the same 1-D interpolation
		return interpolate1D(src, srcLen, dstLen, bpp)
	}
}

// interpolate1D performs piecewise-linear interpolation between
// neighboring source pixels for each destination index (spec §4.5
// "perform piecewise-linear interpolation between neighboring source
// indices").
func interpolate1D(src []byte, srcLen, dstLen, bpp int) []byte {
	out := make([]byte, dstLen*bpp)
	if srcLen == 0 || dstLen == 0 {
		return out
	}
	if srcLen == 1 {
		for i := 0; i < dstLen; i++ {
			copy(out[i*bpp:(i+1)*bpp], src[:bpp])
		}
		return out
	}
	for i := 0; i < dstLen; i++ {
		pos := float64(i) * float64(srcLen-1) / float64(dstLen-1)
		if dstLen == 1 {
			pos = 0
		}
		lo := int(math.Floor(pos))
		hi := lo + 1
		if hi >= srcLen {
			hi = srcLen - 1
		}
		frac := pos - float64(lo)
		for c := 0; c < bpp; c++ {
			a := float64(src[lo*bpp+c])
			b := float64(src[hi*bpp+c])
			out[i*bpp+c] = byte(a + (b-a)*frac)
		}
	}
	return out
}

func cloneOrPad(src []byte, size int) []byte {
	out := make([]byte, size)
	n := len(src)
	if n > size {
		n = size
	}
	copy(out, src[:n])
	return out
}

// Zoom computes the uniform zoom factor for 2-D scaling given a source
// w,h and destination w,h, per mode (spec §4.5: "fit = min of w/h ratios;
// fill = max; stretch = independent per-axis").
func Zoom(srcW, srcH, dstW, dstH int, mode ScaleMode) (zoomX, zoomY float64) {
	rx := float64(dstW) / float64(srcW)
	ry := float64(dstH) / float64(srcH)
	switch mode {
	case ScaleFit:
		z := math.Min(rx, ry)
		return z, z
	case ScaleFill:
		z := math.Max(rx, ry)
		return z, z
	case ScaleStretch:
		return rx, ry
	default:
		return 1, 1
	}
}

// Scale2D bilinearly resamples a [srcH x srcW x bpp] buffer by the given
// zoom factors, then center-crops or pads to dstW x dstH (spec §4.5
// "apply bilinear resampling, then center-crop or pad to sink
// dimensions. Out-of-bounds pixels are background (default (0,0,0))").
func Scale2D(src []byte, srcW, srcH, bpp int, zoomX, zoomY float64, dstW, dstH int) []byte {
	zoomedW := int(math.Round(float64(srcW) * zoomX))
	zoomedH := int(math.Round(float64(srcH) * zoomY))
	if zoomedW < 1 {
		zoomedW = 1
	}
	if zoomedH < 1 {
		zoomedH = 1
	}
	zoomed := bilinearResample(src, srcW, srcH, bpp, zoomedW, zoomedH)
	return centerCropOrPad(zoomed, zoomedW, zoomedH, bpp, dstW, dstH)
}

func bilinearResample(src []byte, srcW, srcH, bpp, dstW, dstH int) []byte {
	out := make([]byte, dstW*dstH*bpp)
	if srcW < 1 || srcH < 1 {
		return out
	}
	for y := 0; y < dstH; y++ {
		sy := float64(y) * float64(srcH-1) / maxF(float64(dstH-1), 1)
		if dstH == 1 {
			sy = 0
		}
		y0 := clampInt(int(math.Floor(sy)), 0, srcH-1)
		y1 := clampInt(y0+1, 0, srcH-1)
		fy := sy - float64(y0)
		for x := 0; x < dstW; x++ {
			sx := float64(x) * float64(srcW-1) / maxF(float64(dstW-1), 1)
			if dstW == 1 {
				sx = 0
			}
			x0 := clampInt(int(math.Floor(sx)), 0, srcW-1)
			x1 := clampInt(x0+1, 0, srcW-1)
			fx := sx - float64(x0)

			for c := 0; c < bpp; c++ {
				v00 := float64(src[(y0*srcW+x0)*bpp+c])
				v01 := float64(src[(y0*srcW+x1)*bpp+c])
				v10 := float64(src[(y1*srcW+x0)*bpp+c])
				v11 := float64(src[(y1*srcW+x1)*bpp+c])
				top := v00 + (v01-v00)*fx
				bot := v10 + (v11-v10)*fx
				out[(y*dstW+x)*bpp+c] = byte(top + (bot-top)*fy)
			}
		}
	}
	return out
}

func centerCropOrPad(src []byte, srcW, srcH, bpp, dstW, dstH int) []byte {
	out := make([]byte, dstW*dstH*bpp) // zero-valued = background (0,0,0)
	offX := (dstW - srcW) / 2
	offY := (dstH - srcH) / 2
	for y := 0; y < srcH; y++ {
		dy := y + offY
		if dy < 0 || dy >= dstH {
			continue
		}
		for x := 0; x < srcW; x++ {
			dx := x + offX
			if dx < 0 || dx >= dstW {
				continue
			}
			copy(out[(dy*dstW+dx)*bpp:(dy*dstW+dx+1)*bpp], src[(y*srcW+x)*bpp:(y*srcW+x+1)*bpp])
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ApplyBrightness multiplies every channel byte by factor, clamping to
// [0,255] (spec §4.5 "Transform ordering": scale -> brightness -> gamma).
func ApplyBrightness(pixels []byte, factor float64) {
	if factor == 1.0 {
		return
	}
	for i, v := range pixels {
		scaled := float64(v) * factor
		pixels[i] = clampByte(scaled)
	}
}

// ApplyGamma raises every channel byte (normalized to [0,1]) to the power
// of gamma (spec §4.5 "Transform ordering").
func ApplyGamma(pixels []byte, gamma float64) {
	if gamma == 1.0 {
		return
	}
	for i, v := range pixels {
		norm := float64(v) / 255.0
		pixels[i] = clampByte(math.Pow(norm, gamma) * 255.0)
	}
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}

// ApplyMirror mirrors a [h x w x bpp] buffer along x and/or y (spec §4.5
// "Transform ordering": mirror is the final step).
func ApplyMirror(pixels []byte, w, h, bpp int, mirrorX, mirrorY bool) []byte {
	if !mirrorX && !mirrorY {
		return pixels
	}
	out := make([]byte, len(pixels))
	for y := 0; y < h; y++ {
		sy := y
		if mirrorY {
			sy = h - 1 - y
		}
		for x := 0; x < w; x++ {
			sx := x
			if mirrorX {
				sx = w - 1 - x
			}
			copy(out[(y*w+x)*bpp:(y*w+x+1)*bpp], pixels[(sy*w+sx)*bpp:(sy*w+sx+1)*bpp])
		}
	}
	return out
}
