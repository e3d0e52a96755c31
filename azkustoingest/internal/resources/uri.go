package resources

import (
	"fmt"
	"net/url"
	"strings"
)

// URI represents a resource URI for an ingestion command: a storage container or a queue, with the SAS token
// that grants access to it.
type URI struct {
	u                   *url.URL
	account, objectName string
	sas                 url.Values
}

// Parse parses a string representing a Kusto resource URI.
func Parse(uri string) (*URI, error) {
	// Example for a valid url:
	// https://fkjsalfdks.blob.core.windows.com/sdsadsadsa?sas=asdasdasd

	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}

	if u.Scheme != "https" {
		return nil, fmt.Errorf("URI scheme must be 'https', was '%s'", u.Scheme)
	}

	if strings.HasPrefix(u.Hostname(), ".") || u.Hostname() == "" {
		return nil, fmt.Errorf("URI(%s) is invalid: the host has no account name", uri)
	}

	objectName := strings.TrimPrefix(u.EscapedPath(), "/")
	if objectName == "" || strings.Contains(objectName, "/") {
		return nil, fmt.Errorf("URI(%s) is invalid: the path must be exactly one object name", uri)
	}

	v := &URI{
		u:          u,
		account:    u.Host,
		objectName: objectName,
		sas:        u.Query(),
	}

	return v, nil
}

// Account is the Azure storage account that will be used.
func (u *URI) Account() string {
	return u.account
}

// ObjectName returns the object name of the resource, i.e container name or queue name.
func (u *URI) ObjectName() string {
	return u.objectName
}

// SAS is shared access signature used to access Azure storage.
// https://docs.microsoft.com/en-us/azure/storage/common/storage-sas-overview
func (u *URI) SAS() url.Values {
	return u.sas
}

// ServiceURL is the account level URL carrying the SAS, e.g. https://account.blob.core.windows.net/?sig=...
func (u *URI) ServiceURL() *url.URL {
	return &url.URL{Scheme: u.u.Scheme, Host: u.account, Path: "/", RawQuery: u.u.RawQuery}
}

// ObjectURL returns the URL of a named object inside this container, carrying the container's SAS.
func (u *URI) ObjectURL(name string) string {
	o := url.URL{Scheme: u.u.Scheme, Host: u.account, Path: "/" + u.objectName + "/" + name, RawQuery: u.u.RawQuery}
	return o.String()
}

// String implements fmt.Stringer.
func (u *URI) String() string {
	return u.u.String()
}
