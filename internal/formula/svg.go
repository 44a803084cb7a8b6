package formula

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

const (
	svgWidth  = 400
	svgHeight = 300
	plotLeft  = 50.0
	plotRight = 350.0
	plotTop   = 50.0
	plotBase  = 250.0
)

func encodeSVG(svg string) string {
	return base64.StdEncoding.EncodeToString([]byte(svg))
}

func svgOpen(b *strings.Builder, height int, title, subtitle string) {
	fmt.Fprintf(b, `<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`, svgWidth, height)
	fmt.Fprintf(b, `<rect width="%d" height="%d" fill="white"/>`, svgWidth, height)
	fmt.Fprintf(b, `<text x="200" y="20" text-anchor="middle" font-size="16" font-weight="bold">%s</text>`, title)
	if subtitle != "" {
		fmt.Fprintf(b, `<text x="200" y="40" text-anchor="middle" font-size="12">%s</text>`, subtitle)
	}
}

func svgAxes(b *strings.Builder, xLabel, yLabel string) {
	fmt.Fprintf(b, `<line x1="%.0f" y1="%.0f" x2="%.0f" y2="%.0f" stroke="black"/>`, plotLeft, plotBase, plotRight, plotBase)
	fmt.Fprintf(b, `<line x1="%.0f" y1="%.0f" x2="%.0f" y2="%.0f" stroke="black"/>`, plotLeft, plotBase, plotLeft, plotTop)
	fmt.Fprintf(b, `<text x="%.0f" y="270" font-size="12">%s</text>`, plotRight, xLabel)
	fmt.Fprintf(b, `<text x="20" y="150" font-size="12" transform="rotate(-90 20 150)">%s</text>`, yLabel)
}

func polyline(b *strings.Builder, points []string, color string, width int) {
	fmt.Fprintf(b, `<polyline points="%s" stroke="%s" fill="none" stroke-width="%d"/>`, strings.Join(points, " "), color, width)
}

// titrationSVG draws a simplified S-shaped pH curve around the equivalence point.
func titrationSVG(acidConc, acidVol, baseConc, equiv float64) string {
	maxVol := equiv * 2.5
	if maxVol <= 0 {
		maxVol = 1
	}
	points := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		vol := float64(i) / 49.0 * maxVol
		var ph float64
		switch {
		case vol < equiv*0.9:
			ph = 3 + vol/maxVol*3
		case vol < equiv*1.1:
			ph = 3 + vol/maxVol*8
		default:
			ph = 10 + vol/maxVol*2
		}
		x := plotLeft + vol/maxVol*300
		y := plotBase - ph/14.0*200
		points = append(points, fmt.Sprintf("%.1f,%.1f", x, y))
	}

	var b strings.Builder
	svgOpen(&b, svgHeight, "Titration Curve",
		fmt.Sprintf("Acid: %sM, %smL | Base: %sM", num(acidConc), num(acidVol), num(baseConc)))
	polyline(&b, points, "blue", 2)
	svgAxes(&b, "Volume of Base (mL)", "pH")
	fmt.Fprintf(&b, `<text x="45" y="255" font-size="10">0</text><text x="45" y="55" font-size="10">14</text>`)
	fmt.Fprintf(&b, `<text x="350" y="255" font-size="10">%.1f</text>`, maxVol)
	b.WriteString("</svg>")
	return b.String()
}

func hookeSVG(k, maxX float64) string {
	maxForce := k * maxX
	points := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		frac := float64(i) / 19.0
		py := plotBase
		if maxForce > 0 {
			py = plotBase - frac*200
		}
		points = append(points, fmt.Sprintf("%.1f,%.1f", plotLeft+frac*300, py))
	}

	var b strings.Builder
	svgOpen(&b, svgHeight, "Hooke's Law: F = kx", fmt.Sprintf("Spring Constant k = %s N/m", num(k)))
	polyline(&b, points, "green", 3)
	svgAxes(&b, "Displacement (m)", "Force (N)")
	fmt.Fprintf(&b, `<text x="45" y="255" font-size="10">0</text>`)
	fmt.Fprintf(&b, `<text x="350" y="255" font-size="10">%.2f</text>`, maxX)
	fmt.Fprintf(&b, `<text x="30" y="55" font-size="10">%.1f</text>`, maxForce)
	b.WriteString("</svg>")
	return b.String()
}

func osmosisSVG(concentration, temperature, pressure float64) string {
	bar := math.Min(150, math.Max(0, math.Floor(pressure*10)))
	mid := plotBase - bar/2

	var b strings.Builder
	svgOpen(&b, svgHeight, "Osmotic Pressure", fmt.Sprintf("π = iMRT = %.2f atm", pressure))
	fmt.Fprintf(&b, `<text x="200" y="60" text-anchor="middle" font-size="11">C = %sM, T = %sK</text>`, num(concentration), num(temperature))
	fmt.Fprintf(&b, `<rect x="100" y="%.0f" width="60" height="%.0f" fill="lightblue" stroke="black" stroke-width="2"/>`, plotBase-bar, bar)
	b.WriteString(`<text x="130" y="270" text-anchor="middle" font-size="12">Solution</text>`)
	b.WriteString(`<line x1="200" y1="100" x2="200" y2="250" stroke="orange" stroke-width="4" stroke-dasharray="5,5"/>`)
	b.WriteString(`<text x="205" y="180" font-size="11">Membrane</text>`)
	b.WriteString(`<rect x="240" y="150" width="60" height="100" fill="lightcyan" stroke="black" stroke-width="2"/>`)
	b.WriteString(`<text x="270" y="270" text-anchor="middle" font-size="12">Water</text>`)
	fmt.Fprintf(&b, `<line x1="160" y1="%.1f" x2="190" y2="%.1f" stroke="red" stroke-width="2"/>`, mid, mid)
	fmt.Fprintf(&b, `<polygon points="190,%.1f 180,%.1f 180,%.1f" fill="red"/>`, mid, mid-5, mid+5)
	b.WriteString("</svg>")
	return b.String()
}

func phScaleSVG(ph, hConc float64) string {
	x := plotLeft + ph/14.0*300

	var b strings.Builder
	svgOpen(&b, 200, "pH Scale", fmt.Sprintf("[H⁺] = %.2e M", hConc))
	b.WriteString(`<defs><linearGradient id="phGradient" x1="0%" y1="0%" x2="100%" y2="0%">`)
	b.WriteString(`<stop offset="0%" style="stop-color:rgb(255,0,0)"/><stop offset="50%" style="stop-color:rgb(0,255,0)"/>`)
	b.WriteString(`<stop offset="100%" style="stop-color:rgb(0,0,255)"/></linearGradient></defs>`)
	b.WriteString(`<rect x="50" y="80" width="300" height="40" fill="url(#phGradient)" stroke="black" stroke-width="2"/>`)
	fmt.Fprintf(&b, `<circle cx="%.1f" cy="100" r="8" fill="yellow" stroke="black" stroke-width="2"/>`, x)
	fmt.Fprintf(&b, `<text x="%.1f" y="165" text-anchor="middle" font-size="14" font-weight="bold">pH = %.2f</text>`, x, ph)
	b.WriteString("</svg>")
	return b.String()
}

func concentrationSVG(molarity, moles, volume float64) string {
	bar := math.Min(150, math.Max(0, math.Floor(molarity*30)))

	var b strings.Builder
	svgOpen(&b, 250, "Molarity Calculation", fmt.Sprintf("M = n/V = %s/%s = %.3f M", num(moles), num(volume), molarity))
	fmt.Fprintf(&b, `<rect x="150" y="%.0f" width="100" height="%.0f" fill="lightblue" stroke="black" stroke-width="3"/>`, 200-bar, bar)
	fmt.Fprintf(&b, `<text x="200" y="220" text-anchor="middle" font-size="14" font-weight="bold">%.3f M</text>`, molarity)
	b.WriteString("</svg>")
	return b.String()
}

func energySVG(k, x, energy float64) string {
	points := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		frac := float64(i) / 19.0
		points = append(points, fmt.Sprintf("%.1f,%.1f", plotLeft+frac*300, plotBase-frac*frac*200))
	}

	var b strings.Builder
	svgOpen(&b, svgHeight, "Elastic Potential Energy", fmt.Sprintf("E = ½kx² = %.3f J (k = %s N/m, x = %s m)", energy, num(k), num(x)))
	polyline(&b, points, "purple", 2)
	svgAxes(&b, "Displacement (m)", "Energy (J)")
	b.WriteString("</svg>")
	return b.String()
}
