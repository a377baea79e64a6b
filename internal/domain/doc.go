// Package domain models Environment Agency surface water flood risk data.
//
// # Data Source
//
// Flood risk geometry comes from the NaFRA2 Risk of Flooding from Surface
// Water (RoFSW) product, published through the Defra Data Services Platform
// geospatial query API. Each query posts a WGS84 polygon and receives a
// zipped ESRI shapefile covering that region. The data is published under
// the Open Government Licence v3.0 and carries the attribution "Contains
// Environment Agency information (c) Environment Agency and/or database
// right".
//
// # Coordinate Systems
//
// All geometry processing happens in EPSG:27700 (British National Grid), a
// planar metric system where buffer radii and areas are meaningful. The
// remote query API and the geocoder speak EPSG:4326 (WGS84 longitude and
// latitude), so bounding boxes are reprojected at the query boundary and
// fetched cells are reprojected back if a dataset arrives in WGS84.
//
// # Grid Cells
//
// RoFSW layers are rasters vectorised at 2 m resolution: each record is one
// small polygon ("grid cell"). Multi-part geometries are exploded on read so
// every [Cell] downstream is a single cell. Because cells are tiny relative
// to a 250-1000 m search buffer, almost all of them lie entirely inside it;
// a cheap vertex containment test passes those through unmodified and only
// the boundary-crossing minority needs an exact clip.
//
// # Layer Catalogue
//
// Six remote source layers feed eight output layers:
//
//	rofsw               carries a "risk_band" attribute (High/Medium/Low),
//	                    split into three categorical output layers after a
//	                    single shared clip.
//	rofsw_*_depth (x5)  one per modelled flooding depth (0.2m to 1.2m),
//	                    each clipped independently and sequentially.
//
// Risk band thresholds (annual chance of surface water flooding):
//
//	High:   >= 3.3%         (1 in 30)
//	Medium: < 3.3%, >= 1%   (1 in 100)
//	Low:    < 1%,   >= 0.1% (1 in 1000)
//
// Band matching is case-insensitive because upstream attribute casing has
// varied between dataset revisions.
//
// # Postcodes
//
// User input is a UK postcode in any casing or spacing. [NormalizePostcode]
// produces the canonical form (upper case, single space before the final
// three characters, e.g. "sw1a1aa" becomes "SW1A 1AA"), which is what the
// geocoder expects and what appears in results. [CompactPostcode] strips the
// space for use in file system names.
//
// # Job Naming
//
// Each extraction job owns a working directory and final archive named
// "RoFSW_<COMPACTPOSTCODE>_<YYYYMMDD_HHMMSS>". The timestamp comes from the
// package clock so tests can pin it via [SetClock]. Uniqueness of the name is
// what isolates concurrent jobs from each other on disk.
package domain
