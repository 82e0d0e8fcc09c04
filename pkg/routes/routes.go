// Package routes names the client-side pages the API directs users to.
package routes

import (
	"net/url"
	"strings"
)

const (
	Home               = "/"
	Profile            = "/profile"
	Onboarding         = "/onboarding"
	DisplayInfo        = "/display-info"
	MedicalRecords     = "/medical-records"
	MedicalRecord      = "/medical-records/:id"
	ScreeningSchedules = "/screening-schedules"
)

// All lists every page in navigation order.
var All = []string{Home, Profile, Onboarding, DisplayInfo, MedicalRecords, MedicalRecord, ScreeningSchedules}

// Record returns the detail page of one record.
func Record(id string) string {
	return strings.Replace(MedicalRecord, ":id", url.PathEscape(id), 1)
}

// Board returns the board page for a record. The record id travels in the
// URL so the board can be reloaded from the store.
func Board(recordID string) string {
	return ScreeningSchedules + "?" + url.Values{"record": {recordID}}.Encode()
}
