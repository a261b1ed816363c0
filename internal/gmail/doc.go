// Package gmail reads the watched newsletter label through the Gmail API.
//
// It resolves a label name to its ID, registers and stops Pub/Sub watches for
// that label, finds the newest message carrying it and extracts the message's
// HTML body. Every API call is traced and counted through the
// instrumentation package.
//
// Example usage:
//
//	client, err := gmail.NewClient(ctx, gmail.ClientConfig{HTTPClient: httpClient})
//	if err != nil {
//	    return err
//	}
//	labelID, err := client.LabelID(ctx, "Newsletters")
//	if err != nil {
//	    return err
//	}
//	id, err := client.LatestMessageID(ctx, labelID)
//	if err != nil {
//	    return err
//	}
//	html, err := client.MessageHTML(ctx, id)
package gmail
