package linkedin

const (
	imageRecipe         = "urn:li:digitalmediaRecipe:feedshare-image"
	ownerRelationship   = "OWNER"
	userGeneratedOrigin = "urn:li:userGeneratedContent"
	uploadMechanismKey  = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
	shareContentKey     = "com.linkedin.ugc.ShareContent"
	visibilityKey       = "com.linkedin.ugc.MemberNetworkVisibility"

	lifecyclePublished = "PUBLISHED"
	visibilityPublic   = "PUBLIC"
	mediaStatusReady   = "READY"

	// CategoryImage marks a post carrying one uploaded image.
	CategoryImage = "IMAGE"
	// CategoryNone marks a text-only post.
	CategoryNone = "NONE"
)

type registerUploadRequest struct {
	RegisterUploadRequest registerUploadBody `json:"registerUploadRequest"`
}

type registerUploadBody struct {
	Recipes              []string              `json:"recipes"`
	Owner                string                `json:"owner"`
	ServiceRelationships []serviceRelationship `json:"serviceRelationships"`
}

type serviceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type registerUploadResponse struct {
	Value struct {
		Asset           string                     `json:"asset"`
		UploadMechanism map[string]uploadMechanism `json:"uploadMechanism"`
	} `json:"value"`
}

type uploadMechanism struct {
	UploadURL string            `json:"uploadUrl"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type shareContent struct {
	ShareCommentary    textValue    `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
	Media              []shareMedia `json:"media,omitempty"`
}

type shareMedia struct {
	Status      string    `json:"status"`
	Description textValue `json:"description"`
	Media       string    `json:"media"`
	Title       textValue `json:"title"`
}

type textValue struct {
	Text string `json:"text"`
}

type createPostResponse struct {
	ID string `json:"id"`
}
