// Package filesystem wraps os.Stat and os.Open with retries for NFS stale
// file handle errors (ESTALE).
//
// The work directories may live on shared storage. A converted file written
// by ffmpeg or pdftoppm can briefly report ESTALE when the server reopens
// it for delivery. Only ESTALE is retried; every other error is returned
// at once.
//
//	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
package filesystem
