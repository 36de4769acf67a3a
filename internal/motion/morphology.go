package motion

// ellipse5 is the 5x5 elliptical structuring element.
var ellipse5 = [5][5]bool{
	{false, false, true, false, false},
	{true, true, true, true, true},
	{true, true, true, true, true},
	{true, true, true, true, true},
	{false, false, true, false, false},
}

// erode keeps a pixel only when every in-bounds kernel neighbour is set.
func erode(dst, src []bool, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			keep := src[y*w+x]
			for ky := 0; keep && ky < 5; ky++ {
				yy := y + ky - 2
				if yy < 0 || yy >= h {
					continue
				}
				for kx := 0; kx < 5; kx++ {
					if !ellipse5[ky][kx] {
						continue
					}
					xx := x + kx - 2
					if xx < 0 || xx >= w {
						continue
					}
					if !src[yy*w+xx] {
						keep = false
						break
					}
				}
			}
			dst[y*w+x] = keep
		}
	}
}

// dilate sets a pixel when any kernel neighbour is set.
func dilate(dst, src []bool, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			set := false
			for ky := 0; !set && ky < 5; ky++ {
				yy := y + ky - 2
				if yy < 0 || yy >= h {
					continue
				}
				for kx := 0; kx < 5; kx++ {
					if !ellipse5[ky][kx] {
						continue
					}
					xx := x + kx - 2
					if xx < 0 || xx >= w {
						continue
					}
					if src[yy*w+xx] {
						set = true
						break
					}
				}
			}
			dst[y*w+x] = set
		}
	}
}

// openClose removes isolated specks (open) and then fills small holes
// (close). mask is rewritten in place; tmp must be the same length.
func openClose(mask, tmp []bool, w, h int) {
	erode(tmp, mask, w, h)
	dilate(mask, tmp, w, h)
	dilate(tmp, mask, w, h)
	erode(mask, tmp, w, h)
}
