package motion

// components labels 8-connected regions of mask and returns their areas.
// labels and stack are scratch buffers reused between calls.
func components(mask []bool, w, h int, labels []int32, stack []int32) ([]int, []int32) {
	clear(labels)
	var areas []int
	var next int32
	for start, set := range mask {
		if !set || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		stack = append(stack[:0], int32(start))
		area := 0
		for len(stack) > 0 {
			idx := int(stack[len(stack)-1])
			stack = stack[:len(stack)-1]
			area++
			x, y := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if (dx == 0 && dy == 0) || xx < 0 || xx >= w {
						continue
					}
					n := yy*w + xx
					if mask[n] && labels[n] == 0 {
						labels[n] = next
						stack = append(stack, int32(n))
					}
				}
			}
		}
		areas = append(areas, area)
	}
	return areas, stack
}
