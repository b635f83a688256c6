package methods

import "github.com/wroge/wgs84"

// UTMZone 经度所在的 UTM 带号，1..60
func UTMZone(lon float64) int {
	z := int((lon+180)/6) + 1
	if z < 1 {
		return 1
	}
	if z > 60 {
		return 60
	}
	return z
}

// UTM 把 WGS84 经纬度投影到所在带的横轴墨卡托坐标，南半球北坐标加 10000000
func UTM(lon, lat float64) (easting, northing float64, zone int, hemi string) {
	zone = UTMZone(lon)
	hemi = "N"
	if lat < 0 {
		hemi = "S"
	}
	easting, northing = UTMInZone(lon, lat, zone, lat < 0)
	return easting, northing, zone, hemi
}

// UTMInZone 按指定带号与半球投影，用于整条记录统一带号
func UTMInZone(lon, lat float64, zone int, south bool) (easting, northing float64) {
	easting, northing, _ = wgs84.LonLat().To(wgs84.UTM(float64(zone), !south))(lon, lat, 0)
	return easting, northing
}
