/*
go-visionforge tracks objects across a video stream by pairing a slow, full
frame object detector with fast per frame template matching.

The detector runs on a background goroutine and periodically publishes a new
set of tracks.  Between detection cycles every call to Predict re-localises
each track by searching an expanded window around its last known position
for its template, validating candidate matches with a grayscale histogram
comparison.

Identity is kept across detection cycles purely by geometric containment: a
new detection lying inside a previous track's expanded search window
continues that track, anything else starts a new one.

See example code and usage in the example subdirectory.
*/
package visionforge
