package dms

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/anacrolix/microdlna/icons"
)

// The device description and SCPDs mirror the fixed XML the original
// reactor served verbatim from static buffers; here they are built once
// at startup from a handful of small XML-marshalable structs plus the
// constant SCPD bodies below, and kept as an already-rendered []byte.

type specVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type iconDesc struct {
	Mimetype string `xml:"mimetype"`
	Width    int    `xml:"width"`
	Height   int    `xml:"height"`
	Depth    int    `xml:"depth"`
	URL      string `xml:"url"`
}

type serviceDesc struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

type deviceDesc struct {
	DeviceType       string        `xml:"deviceType"`
	FriendlyName     string        `xml:"friendlyName"`
	Manufacturer     string        `xml:"manufacturer"`
	ManufacturerURL  string        `xml:"manufacturerURL"`
	ModelDescription string        `xml:"modelDescription"`
	ModelName        string        `xml:"modelName"`
	ModelNumber      string        `xml:"modelNumber"`
	UDN              string        `xml:"UDN"`
	IconList         []iconDesc    `xml:"iconList>icon"`
	ServiceList      []serviceDesc `xml:"serviceList>service"`
	PresentationURL  string        `xml:"presentationURL"`
}

type rootDesc struct {
	XMLName     xml.Name    `xml:"root"`
	Xmlns       string      `xml:"xmlns,attr"`
	SpecVersion specVersion `xml:"specVersion"`
	Device      deviceDesc  `xml:"device"`
}

const (
	contentDirectoryServiceType   = "urn:schemas-upnp-org:service:ContentDirectory:1"
	connectionManagerServiceType  = "urn:schemas-upnp-org:service:ConnectionManager:1"
	mediaReceiverRegistrarService = "urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1"
)

func buildRootDesc(friendlyName, uuid string, built []icons.Icon) []byte {
	var iconList []iconDesc
	for _, ic := range built {
		iconList = append(iconList, iconDesc{
			Mimetype: ic.Mimetype,
			Width:    ic.Width,
			Height:   ic.Height,
			Depth:    ic.Depth,
			URL:      iconsPath + ic.Path,
		})
	}

	d := rootDesc{
		Xmlns:       "urn:schemas-upnp-org:device-1-0",
		SpecVersion: specVersion{Major: 1, Minor: 0},
		Device: deviceDesc{
			DeviceType:       "urn:schemas-upnp-org:device:MediaServer:1",
			FriendlyName:     friendlyName,
			Manufacturer:     "microdlna",
			ManufacturerURL:  "https://github.com/",
			ModelDescription: "microdlna media server",
			ModelName:        "microdlna",
			ModelNumber:      serverVersion,
			UDN:              "uuid:" + uuid,
			IconList:         iconList,
			ServiceList: []serviceDesc{
				{
					ServiceType: contentDirectoryServiceType,
					ServiceID:   "urn:upnp-org:serviceId:ContentDirectory",
					SCPDURL:     "/ContentDir.xml",
					ControlURL:  serviceCtlPath + "ContentDir",
					EventSubURL: serviceEvtPath + "ContentDir",
				},
				{
					ServiceType: connectionManagerServiceType,
					ServiceID:   "urn:upnp-org:serviceId:ConnectionManager",
					SCPDURL:     "/ConnectionMgr.xml",
					ControlURL:  serviceCtlPath + "ConnectionMgr",
					EventSubURL: serviceEvtPath + "ConnectionMgr",
				},
				{
					ServiceType: mediaReceiverRegistrarService,
					ServiceID:   "urn:microsoft.com:serviceId:X_MS_MediaReceiverRegistrar",
					SCPDURL:     "/X_MS_MediaReceiverRegistrar.xml",
					ControlURL:  serviceCtlPath + "X_MS_MediaReceiverRegistrar",
					EventSubURL: serviceEvtPath + "X_MS_MediaReceiverRegistrar",
				},
			},
		},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(d); err != nil {
		panic(fmt.Sprintf("dms: marshaling root description: %v", err))
	}
	return buf.Bytes()
}

// scpdPaths maps the SCPD URL to its static, pre-rendered XML body.
var scpdPaths = map[string][]byte{
	"/ContentDir.xml":                     []byte(contentDirectorySCPD),
	"/ConnectionMgr.xml":                  []byte(connectionManagerSCPD),
	"/X_MS_MediaReceiverRegistrar.xml":    []byte(mediaReceiverRegistrarSCPD),
}

const scpdHeader = xml.Header + `<scpd xmlns="urn:schemas-upnp-org:service-1-0">
<specVersion><major>1</major><minor>0</minor></specVersion>
`

const contentDirectorySCPD = scpdHeader + `<actionList>
<action><name>GetSearchCapabilities</name>
<argumentList><argument><name>SearchCaps</name><direction>out</direction><relatedStateVariable>SearchCapabilities</relatedStateVariable></argument></argumentList>
</action>
<action><name>GetSortCapabilities</name>
<argumentList><argument><name>SortCaps</name><direction>out</direction><relatedStateVariable>SortCapabilities</relatedStateVariable></argument></argumentList>
</action>
<action><name>GetSystemUpdateID</name>
<argumentList><argument><name>Id</name><direction>out</direction><relatedStateVariable>SystemUpdateID</relatedStateVariable></argument></argumentList>
</action>
<action><name>Browse</name>
<argumentList>
<argument><name>ObjectID</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_ObjectID</relatedStateVariable></argument>
<argument><name>BrowseFlag</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_BrowseFlag</relatedStateVariable></argument>
<argument><name>Filter</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_Filter</relatedStateVariable></argument>
<argument><name>StartingIndex</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_Index</relatedStateVariable></argument>
<argument><name>RequestedCount</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable></argument>
<argument><name>SortCriteria</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_SortCriteria</relatedStateVariable></argument>
<argument><name>Result</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Result</relatedStateVariable></argument>
<argument><name>NumberReturned</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable></argument>
<argument><name>TotalMatches</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable></argument>
<argument><name>UpdateID</name><direction>out</direction><relatedStateVariable>SystemUpdateID</relatedStateVariable></argument>
</argumentList>
</action>
<action><name>Search</name>
<argumentList>
<argument><name>ContainerID</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_ObjectID</relatedStateVariable></argument>
<argument><name>SearchCriteria</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_SearchCriteria</relatedStateVariable></argument>
<argument><name>Filter</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_Filter</relatedStateVariable></argument>
<argument><name>StartingIndex</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_Index</relatedStateVariable></argument>
<argument><name>RequestedCount</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable></argument>
<argument><name>SortCriteria</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_SortCriteria</relatedStateVariable></argument>
<argument><name>Result</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Result</relatedStateVariable></argument>
<argument><name>NumberReturned</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable></argument>
<argument><name>TotalMatches</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable></argument>
<argument><name>UpdateID</name><direction>out</direction><relatedStateVariable>SystemUpdateID</relatedStateVariable></argument>
</argumentList>
</action>
</actionList>
<serviceStateTable>
<stateVariable sendEvents="no"><name>SearchCapabilities</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>SortCapabilities</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="yes"><name>SystemUpdateID</name><dataType>ui4</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_ObjectID</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_BrowseFlag</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_Filter</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_SortCriteria</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_SearchCriteria</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_Index</name><dataType>ui4</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_Count</name><dataType>ui4</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_Result</name><dataType>string</dataType></stateVariable>
</serviceStateTable>
</scpd>`

const connectionManagerSCPD = scpdHeader + `<actionList>
<action><name>GetProtocolInfo</name>
<argumentList>
<argument><name>Source</name><direction>out</direction><relatedStateVariable>SourceProtocolInfo</relatedStateVariable></argument>
<argument><name>Sink</name><direction>out</direction><relatedStateVariable>SinkProtocolInfo</relatedStateVariable></argument>
</argumentList>
</action>
<action><name>GetCurrentConnectionIDs</name>
<argumentList><argument><name>ConnectionIDs</name><direction>out</direction><relatedStateVariable>CurrentConnectionIDs</relatedStateVariable></argument></argumentList>
</action>
<action><name>GetCurrentConnectionInfo</name>
<argumentList>
<argument><name>ConnectionID</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_ConnectionID</relatedStateVariable></argument>
<argument><name>RcsID</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_RcsID</relatedStateVariable></argument>
<argument><name>AVTransportID</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_AVTransportID</relatedStateVariable></argument>
<argument><name>ProtocolInfo</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_ProtocolInfo</relatedStateVariable></argument>
<argument><name>PeerConnectionManager</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_ConnectionManager</relatedStateVariable></argument>
<argument><name>PeerConnectionID</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_ConnectionID</relatedStateVariable></argument>
<argument><name>Direction</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Direction</relatedStateVariable></argument>
<argument><name>Status</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_ConnectionStatus</relatedStateVariable></argument>
</argumentList>
</action>
</actionList>
<serviceStateTable>
<stateVariable sendEvents="yes"><name>SourceProtocolInfo</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="yes"><name>SinkProtocolInfo</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="yes"><name>CurrentConnectionIDs</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_ConnectionStatus</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_ConnectionManager</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_Direction</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_ConnectionID</name><dataType>i4</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_RcsID</name><dataType>i4</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_AVTransportID</name><dataType>i4</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_ProtocolInfo</name><dataType>string</dataType></stateVariable>
</serviceStateTable>
</scpd>`

const mediaReceiverRegistrarSCPD = scpdHeader + `<actionList>
<action><name>IsAuthorized</name>
<argumentList>
<argument><name>DeviceID</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_DeviceID</relatedStateVariable></argument>
<argument><name>Result</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Result</relatedStateVariable></argument>
</argumentList>
</action>
<action><name>IsValidated</name>
<argumentList>
<argument><name>DeviceID</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_DeviceID</relatedStateVariable></argument>
<argument><name>Result</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_Result</relatedStateVariable></argument>
</argumentList>
</action>
<action><name>RegisterDevice</name>
<argumentList>
<argument><name>RegistrationReqMsg</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_RegistrationReqMsg</relatedStateVariable></argument>
<argument><name>RegistrationRespMsg</name><direction>out</direction><relatedStateVariable>A_ARG_TYPE_RegistrationRespMsg</relatedStateVariable></argument>
</argumentList>
</action>
</actionList>
<serviceStateTable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_DeviceID</name><dataType>string</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_Result</name><dataType>int</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_RegistrationReqMsg</name><dataType>bin.base64</dataType></stateVariable>
<stateVariable sendEvents="no"><name>A_ARG_TYPE_RegistrationRespMsg</name><dataType>bin.base64</dataType></stateVariable>
<stateVariable sendEvents="yes"><name>AuthorizationGrantedUpdateID</name><dataType>ui4</dataType></stateVariable>
<stateVariable sendEvents="yes"><name>AuthorizationDeniedUpdateID</name><dataType>ui4</dataType></stateVariable>
<stateVariable sendEvents="yes"><name>ValidationSucceededUpdateID</name><dataType>ui4</dataType></stateVariable>
<stateVariable sendEvents="yes"><name>ValidationRevokedUpdateID</name><dataType>ui4</dataType></stateVariable>
</serviceStateTable>
</scpd>`
