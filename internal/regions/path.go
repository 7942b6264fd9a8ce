package regions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// argCount is the number of numbers each path command takes per repetition.
var argCount = map[byte]int{
	'M': 2, 'L': 2, 'T': 2,
	'H': 1, 'V': 1,
	'C': 6,
	'S': 4, 'Q': 4,
	'A': 7,
	'Z': 0,
}

// ParsePathData reads SVG path data into one point list per subpath.
// Curves and arcs contribute their end points only; control points are
// dropped. The returned lists are not closed.
func ParsePathData(d string) ([][]orb.Point, error) {
	var (
		sc      = pathScanner{s: d}
		out     [][]orb.Point
		current []orb.Point
		cur     orb.Point
		start   orb.Point
	)

	flush := func() {
		if len(current) > 0 {
			out = append(out, current)
		}
		current = nil
	}

	for {
		cmd, ok := sc.command()
		if !ok {
			if sc.done() {
				break
			}
			return nil, fmt.Errorf("path data: unexpected %q at %d", sc.s[sc.i], sc.i)
		}

		upper := cmd &^ 0x20
		n := argCount[upper]
		relative := cmd != upper

		if upper == 'Z' {
			flush()
			cur = start
			continue
		}
		if len(current) == 0 && upper != 'M' {
			// drawing after a close continues from the subpath start
			current = append(current, cur)
		}

		for first := true; first || sc.hasNumber(); first = false {
			args := make([]float64, n)
			for i := range args {
				var err error
				if upper == 'A' && (i == 3 || i == 4) {
					args[i], err = sc.flag()
				} else {
					args[i], err = sc.number()
				}
				if err != nil {
					return nil, fmt.Errorf("path data: command %q: %w", cmd, err)
				}
			}

			next := cur
			switch upper {
			case 'H':
				next[0] = args[0]
				if relative {
					next[0] += cur[0]
				}
			case 'V':
				next[1] = args[0]
				if relative {
					next[1] += cur[1]
				}
			default:
				next = orb.Point{args[n-2], args[n-1]}
				if relative {
					next[0] += cur[0]
					next[1] += cur[1]
				}
			}

			if upper == 'M' && first {
				flush()
				start = next
			}
			current = append(current, next)
			cur = next

			// further pairs after a moveto are implicit linetos
			if upper == 'M' {
				upper = 'L'
			}
		}
	}

	flush()
	return out, nil
}

// ParsePoints reads the points attribute of a polygon or polyline.
func ParsePoints(s string) ([]orb.Point, error) {
	sc := pathScanner{s: s}
	var pts []orb.Point
	for sc.hasNumber() {
		x, err := sc.number()
		if err != nil {
			return nil, err
		}
		y, err := sc.number()
		if err != nil {
			return nil, fmt.Errorf("points: odd number of coordinates")
		}
		pts = append(pts, orb.Point{x, y})
	}
	if !sc.done() {
		return nil, fmt.Errorf("points: unexpected %q at %d", sc.s[sc.i], sc.i)
	}
	return pts, nil
}

type pathScanner struct {
	s string
	i int
}

func (p *pathScanner) skip() {
	for p.i < len(p.s) && strings.IndexByte(" \t\r\n,", p.s[p.i]) >= 0 {
		p.i++
	}
}

func (p *pathScanner) done() bool {
	p.skip()
	return p.i >= len(p.s)
}

func (p *pathScanner) command() (byte, bool) {
	p.skip()
	if p.i >= len(p.s) {
		return 0, false
	}
	c := p.s[p.i]
	if strings.IndexByte("MmLlHhVvCcSsQqTtAaZz", c) < 0 {
		return 0, false
	}
	p.i++
	return c, true
}

func (p *pathScanner) hasNumber() bool {
	p.skip()
	return p.i < len(p.s) && strings.IndexByte("0123456789.-+", p.s[p.i]) >= 0
}

// number reads a float. "1.5.5" is two numbers and "1-2" is 1 and -2.
func (p *pathScanner) number() (float64, error) {
	p.skip()
	start := p.i
	if p.i < len(p.s) && (p.s[p.i] == '-' || p.s[p.i] == '+') {
		p.i++
	}
	dot, digits := false, false
scan:
	for p.i < len(p.s) {
		c := p.s[p.i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' && !dot:
			dot = true
		default:
			break scan
		}
		p.i++
	}
	if digits && p.i < len(p.s) && (p.s[p.i] == 'e' || p.s[p.i] == 'E') {
		j := p.i + 1
		if j < len(p.s) && (p.s[j] == '-' || p.s[j] == '+') {
			j++
		}
		if j < len(p.s) && p.s[j] >= '0' && p.s[j] <= '9' {
			for j < len(p.s) && p.s[j] >= '0' && p.s[j] <= '9' {
				j++
			}
			p.i = j
		}
	}
	if !digits {
		p.i = start
		return 0, fmt.Errorf("expected number at %d", start)
	}
	return strconv.ParseFloat(p.s[start:p.i], 64)
}

// flag reads an arc flag, which may be written without a separator ("a1 1 0 01 5 5").
func (p *pathScanner) flag() (float64, error) {
	p.skip()
	if p.i < len(p.s) && (p.s[p.i] == '0' || p.s[p.i] == '1') {
		p.i++
		return float64(p.s[p.i-1] - '0'), nil
	}
	return 0, fmt.Errorf("expected arc flag at %d", p.i)
}
