// Package linkedin publishes posts through the LinkedIn v2 REST API.
//
// An image post takes three calls: register an upload with the assets API,
// PUT the image bytes to the returned upload URL, then create a UGC post that
// references the asset URN. Posts without an image skip the first two calls.
//
//	client, err := linkedin.NewClient(linkedin.Config{
//	    AccessToken: token,
//	    OwnerURN:    "urn:li:person:abc123",
//	})
//	if err != nil {
//	    return err
//	}
//	postID, err := client.Publish(ctx, text, &linkedin.Image{Filename: "post_image.png", Data: data})
package linkedin
