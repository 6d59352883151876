// Package domain models the flight/weather join: airport and station
// identities, hourly surface observations, flight legs, aircraft registry
// metadata, and the adverse-weather scoring that annotates each joined record.
//
// # Data Sources
//
// Weather observations come from NOAA ISD-Lite monthly station files
// (https://www.ncei.noaa.gov/pub/data/noaa/isd-lite/), one whitespace-
// delimited record per hour. Flights come from the BTS On-Time Performance
// prezip extracts (reporting-carrier with a marketing-carrier fallback).
// Aircraft metadata comes from the FAA releasable registry snapshot, keyed
// by tail number. The station directory is the NOAA ISD station history CSV,
// which maps airport call signs to USAF/WBAN station identifiers.
//
// # Observation Record Layout
//
// Each observation line carries twelve integer fields in fixed order:
//
//	year month day hour temp dewpt slp wind-dir wind-speed ceiling visibility precip
//
// with per-field encodings:
//
//	temp, dewpt    tenths of degrees Celsius
//	slp            tenths of hectopascals
//	wind-dir       whole degrees
//	wind-speed     tenths of meters per second (converted to knots)
//	ceiling        whole feet
//	visibility     whole meters (converted to kilometers)
//	precip         tenths of millimeters (one-hour accumulation)
//
// The value -9999 is the missing-data sentinel for every field. Sentinels
// decode to nil field pointers, never to zero: a calm hour and an
// unmeasured hour are different facts.
//
// # Flight Record Conventions
//
// Scheduled departure times are local HHMM strings; "2400" means midnight
// at the end of the flight date, which no same-date observation hour covers,
// so those legs carry absent weather. Departure and arrival delay columns
// are empty for
// cancelled or diverted legs and must stay nil so cancellations are never
// counted as on-time.
//
// # Adverse-Weather Classification
//
// A flight's matched observation is evaluated against four configurable
// criteria (wind at or above a knot threshold, measurable precipitation,
// ceiling below a foot threshold, visibility below a kilometer threshold).
// The boolean flag is the OR of the exceeded criteria; the numeric score is
// a weighted sum of normalized threshold excesses. Both are nil when no
// observation could be matched for the flight: "no data" and "confirmed
// calm" are reported differently all the way to the output.
package domain
