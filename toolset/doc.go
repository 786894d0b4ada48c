// Package toolset builds the three tools the calendar planner may call:
// askForDetails, askTimeAndTimeZone and makeGCalendarEntry.
package toolset
