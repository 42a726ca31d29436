/*
Package streaming delivers converted files to HTTP clients with timeout
protection.

A slow or vanished client must not pin a request goroutine, or the temporary
file it is reading, forever. Writer wraps an http.ResponseWriter and bounds
each chunk write by WriteTimeout and the gap between chunks by IdleTimeout.
When the server supports write deadlines (http.ResponseController) they are
used directly; otherwise each chunk write runs in a goroutine that is
abandoned on timeout.

# Usage

	f, _ := os.Open(path)
	defer f.Close()

	a := streaming.Attachment{FileName: "photo-converted.jpg", ContentType: "image/jpeg", Size: size}
	if _, err := streaming.ServeAttachment(r.Context(), w, a, f, streaming.DefaultConfig()); err != nil {
		if errors.Is(err, streaming.ErrClientGone) {
			// client went away; nothing to report
		}
	}

# Errors

  - ErrWriteTimeout: one chunk took longer than WriteTimeout
  - ErrClientGone: the request context was canceled
  - ErrStreamCanceled: the writer was closed or went idle

Headers are already sent once streaming starts, so callers can only log these
errors.
*/
package streaming
