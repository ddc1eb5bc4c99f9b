package gateway

import (
	"encoding/xml"
	"net/http"
	"time"
)

// s3Namespace is the XML namespace every S3 response document carries.
const s3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// iso8601Millis renders a timestamp the way S3 does in list documents.
func iso8601Millis(sec uint64) string {
	return time.Unix(int64(sec), 0).UTC().Format("2006-01-02T15:04:05.000Z")
}

// httpDate renders a timestamp for Last-Modified headers.
func httpDate(sec uint64) string {
	return time.Unix(int64(sec), 0).UTC().Format(http.TimeFormat)
}

// ============================================================================
// Response documents
// ============================================================================

type ownerXML struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

type bucketXML struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

type listAllMyBucketsResult struct {
	XMLName xml.Name    `xml:"ListAllMyBucketsResult"`
	Xmlns   string      `xml:"xmlns,attr"`
	Owner   ownerXML    `xml:"Owner"`
	Buckets []bucketXML `xml:"Buckets>Bucket"`
}

type objectXML struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         uint64 `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type commonPrefixXML struct {
	Prefix string `xml:"Prefix"`
}

// listBucketResult covers both v1 and v2 listings; version-specific fields
// are pointers so the other version omits them.
type listBucketResult struct {
	XMLName xml.Name `xml:"ListBucketResult"`
	Xmlns   string   `xml:"xmlns,attr"`

	Name        string `xml:"Name"`
	Prefix      string `xml:"Prefix"`
	Delimiter   string `xml:"Delimiter,omitempty"`
	MaxKeys     int    `xml:"MaxKeys"`
	IsTruncated bool   `xml:"IsTruncated"`

	// v1
	Marker     *string `xml:"Marker,omitempty"`
	NextMarker *string `xml:"NextMarker,omitempty"`

	// v2
	KeyCount              *int    `xml:"KeyCount,omitempty"`
	ContinuationToken     *string `xml:"ContinuationToken,omitempty"`
	NextContinuationToken *string `xml:"NextContinuationToken,omitempty"`

	Contents       []objectXML       `xml:"Contents"`
	CommonPrefixes []commonPrefixXML `xml:"CommonPrefixes,omitempty"`
}

type errorXML struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// writeXML serializes doc with the XML declaration S3 clients expect.
func writeXML(w http.ResponseWriter, status int, doc any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	enc.Encode(doc)
}
