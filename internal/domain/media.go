package domain

type URLType string

const (
	URLTypeYoutube URLType = "youtube"
	URLTypeImage   URLType = "image"
	URLTypeMusic   URLType = "music"
	URLTypeSetting URLType = "setting"
	URLTypeUnknown URLType = "unknown"
)

// MediaStore is the payload of a media-list document. The bytes themselves
// live in the object store; this is only the metadata other documents point
// at through their embedded mediaKey fields.
type MediaStore struct {
	Name         string  `mapstructure:"name" json:"name"`
	RawPath      string  `mapstructure:"rawPath" json:"rawPath"`
	Hash         string  `mapstructure:"hash" json:"hash"`
	MediaFileID  string  `mapstructure:"mediaFileId" json:"mediaFileId"`
	Tag          string  `mapstructure:"tag" json:"tag"`
	URL          string  `mapstructure:"url" json:"url"`
	URLType      URLType `mapstructure:"urlType" json:"urlType"`
	IconClass    string  `mapstructure:"iconClass" json:"iconClass"`
	DataLocation string  `mapstructure:"dataLocation" json:"dataLocation"` // "server" or "direct"
}

// UploadMediaInfo is one item of an upload request. ArrayBuffer carries a
// base64 data url when DataLocation is "server".
type UploadMediaInfo struct {
	Key          string  `json:"key,omitempty"`
	Name         string  `json:"name"`
	RawPath      string  `json:"rawPath"`
	Tag          string  `json:"tag"`
	URL          string  `json:"url"`
	URLType      URLType `json:"urlType"`
	IconClass    string  `json:"iconClass"`
	DataLocation string  `json:"dataLocation"`
	ArrayBuffer  string  `json:"arrayBuffer,omitempty"`
}

type UploadMediaRequest struct {
	UploadMediaInfoList []UploadMediaInfo `json:"uploadMediaInfoList"`
	Option              AddParam          `json:"option"`
}

type UploadMediaResponseItem struct {
	Key     string  `json:"key"`
	RawPath string  `json:"rawPath"`
	URL     string  `json:"url"`
	Name    string  `json:"name"`
	Tag     string  `json:"tag"`
	URLType URLType `json:"urlType"`
}
