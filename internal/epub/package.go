package epub

import "encoding/xml"

type container struct {
	XMLName   xml.Name   `xml:"container"`
	Rootfiles []rootfile `xml:"rootfiles>rootfile"`
}

type rootfile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Titles    []dcValue `xml:"title"`
	Creators  []dcValue `xml:"creator"`
	Languages []dcValue `xml:"language"`
	Metas     []opfMeta `xml:"meta"`
}

type dcValue struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type opfManifest struct {
	Items []manifestItem `xml:"item"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc   string      `xml:"toc,attr"`
	Items []spineItem `xml:"itemref"`
}

type spineItem struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

type ncx struct {
	XMLName xml.Name    `xml:"ncx"`
	Points  []*navPoint `xml:"navMap>navPoint"`
}

type navPoint struct {
	ID        string          `xml:"id,attr"`
	PlayOrder int             `xml:"playOrder,attr"`
	Label     string          `xml:"navLabel>text"`
	Content   navPointContent `xml:"content"`
	NavPoints []*navPoint     `xml:"navPoint"`
}

type navPointContent struct {
	Src string `xml:"src,attr"`
}

func (m opfManifest) byID(id string) (manifestItem, bool) {
	for _, item := range m.Items {
		if item.ID == id {
			return item, true
		}
	}
	return manifestItem{}, false
}

func (m opfManifest) withProperty(property string) (manifestItem, bool) {
	for _, item := range m.Items {
		for _, p := range splitFields(item.Properties) {
			if p == property {
				return item, true
			}
		}
	}
	return manifestItem{}, false
}
