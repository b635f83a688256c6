package Transformer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/GrainArc/GlebaMap/methods"
	"github.com/paulmach/orb"
)

var csvHeader = []string{"Ponto", "Latitude", "Longitude", "Lat DMS", "Lon DMS", "UTM X", "UTM Y", "Zona"}

// GeojsonToCsv 每个顶点一行，分号分隔，小数用逗号，带 UTF-8 BOM
func GeojsonToCsv(g orb.Geometry) ([]byte, error) {
	pts, ok := methods.PointList(g)
	if !ok {
		return nil, ErrUnsupportedGeometry
	}
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	w.UseCRLF = true
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i, p := range pts {
		lon, lat := p[0], p[1]
		e, n, zone, hemi := methods.UTM(lon, lat)
		row := []string{
			strconv.Itoa(i + 1),
			decimalComma(lat, 8),
			decimalComma(lon, 8),
			methods.DecimalToDMS(lat, methods.Lat),
			methods.DecimalToDMS(lon, methods.Lon),
			decimalComma(e, 3),
			decimalComma(n, 3),
			fmt.Sprintf("%d%s", zone, hemi),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decimalComma(v float64, prec int) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', prec, 64), ".", ",", 1)
}
