package axl

import "encoding/xml"

// Phone is the subset of the AXL XPhone/RPhone record the portal reads.
type Phone struct {
	UUID                   string      `xml:"uuid,attr" json:"uuid,omitempty"`
	Name                   string      `xml:"name" json:"name"`
	Description            string      `xml:"description" json:"description"`
	Product                string      `xml:"product" json:"product,omitempty"`
	Model                  string      `xml:"model" json:"model,omitempty"`
	Class                  string      `xml:"class" json:"class,omitempty"`
	Protocol               string      `xml:"protocol" json:"protocol,omitempty"`
	DevicePoolName         string      `xml:"devicePoolName" json:"devicePoolName,omitempty"`
	CallingSearchSpaceName string      `xml:"callingSearchSpaceName" json:"callingSearchSpaceName,omitempty"`
	LocationName           string      `xml:"locationName" json:"locationName,omitempty"`
	OwnerUserName          string      `xml:"ownerUserName" json:"ownerUserName,omitempty"`
	Lines                  []PhoneLine `xml:"lines>line" json:"lines"`
}

// PhoneLine is one line appearance on a phone.
type PhoneLine struct {
	Index int    `xml:"index" json:"index"`
	Label string `xml:"label,omitempty" json:"label,omitempty"`
	Dirn  DirN   `xml:"dirn" json:"dirn"`
}

// DirN identifies a directory number by pattern and partition.
type DirN struct {
	Pattern            string `xml:"pattern" json:"pattern"`
	RoutePartitionName string `xml:"routePartitionName" json:"routePartitionName"`
}

// Line is a directory number.
type Line struct {
	UUID                 string `xml:"uuid,attr" json:"uuid,omitempty"`
	Pattern              string `xml:"pattern" json:"pattern"`
	Description          string `xml:"description" json:"description"`
	Usage                string `xml:"usage" json:"usage,omitempty"`
	RoutePartitionName   string `xml:"routePartitionName" json:"routePartitionName"`
	AlertingName         string `xml:"alertingName" json:"alertingName,omitempty"`
	VoiceMailProfileName string `xml:"voiceMailProfileName" json:"voiceMailProfileName,omitempty"`
}

// User is an end user.
type User struct {
	UUID              string   `xml:"uuid,attr" json:"uuid,omitempty"`
	UserID            string   `xml:"userid" json:"userid"`
	FirstName         string   `xml:"firstName" json:"firstName"`
	LastName          string   `xml:"lastName" json:"lastName"`
	DisplayName       string   `xml:"displayName" json:"displayName,omitempty"`
	MailID            string   `xml:"mailid" json:"mailid,omitempty"`
	Department        string   `xml:"department" json:"department,omitempty"`
	TelephoneNumber   string   `xml:"telephoneNumber" json:"telephoneNumber,omitempty"`
	PrimaryExtension  DirN     `xml:"primaryExtension" json:"primaryExtension"`
	AssociatedDevices []string `xml:"associatedDevices>device" json:"associatedDevices"`
}

// NewPhone describes a phone to add.
type NewPhone struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Product        string `json:"product"`
	Protocol       string `json:"protocol"`
	DevicePoolName string `json:"devicePoolName"`
	Line           *DirN  `json:"line,omitempty"`
}

// PhoneUpdate carries the fields updatePhone may change. Empty fields are left alone.
type PhoneUpdate struct {
	Description    string `json:"description,omitempty"`
	DevicePoolName string `json:"devicePoolName,omitempty"`
}

// LineUpdate carries the fields updateLine may change. Empty fields are left alone.
type LineUpdate struct {
	Description          string `json:"description,omitempty"`
	AlertingName         string `json:"alertingName,omitempty"`
	VoiceMailProfileName string `json:"voiceMailProfileName,omitempty"`
}

// UserUpdate carries the fields updateUser may change. Empty fields are left alone.
type UserUpdate struct {
	TelephoneNumber  string `json:"telephoneNumber,omitempty"`
	PrimaryExtension *DirN  `json:"primaryExtension,omitempty"`
}

// --- wire requests ---

type getCCMVersionReq struct {
	XMLName xml.Name `xml:"ns:getCCMVersion"`
}

type getCCMVersionResp struct {
	Version string `xml:"return>componentVersion>version"`
}

type getPhoneReq struct {
	XMLName xml.Name `xml:"ns:getPhone"`
	Name    string   `xml:"name"`
}

type getPhoneResp struct {
	Phone Phone `xml:"return>phone"`
}

type phoneTags struct {
	Name           string `xml:"name"`
	Description    string `xml:"description"`
	Product        string `xml:"product"`
	Model          string `xml:"model"`
	Protocol       string `xml:"protocol"`
	DevicePoolName string `xml:"devicePoolName"`
}

type listPhoneReq struct {
	XMLName        xml.Name `xml:"ns:listPhone"`
	SearchCriteria struct {
		Name        string `xml:"name,omitempty"`
		Description string `xml:"description,omitempty"`
	} `xml:"searchCriteria"`
	ReturnedTags phoneTags `xml:"returnedTags"`
}

type listPhoneResp struct {
	Phones []Phone `xml:"return>phone"`
}

type xLine struct {
	Index int  `xml:"index"`
	Dirn  DirN `xml:"dirn"`
}

type addPhoneReq struct {
	XMLName xml.Name `xml:"ns:addPhone"`
	Phone   struct {
		Name                  string  `xml:"name"`
		Description           string  `xml:"description"`
		Product               string  `xml:"product"`
		Class                 string  `xml:"class"`
		Protocol              string  `xml:"protocol"`
		ProtocolSide          string  `xml:"protocolSide"`
		DevicePoolName        string  `xml:"devicePoolName"`
		CommonPhoneConfigName string  `xml:"commonPhoneConfigName"`
		LocationName          string  `xml:"locationName"`
		UseTrustedRelayPoint  string  `xml:"useTrustedRelayPoint"`
		BuiltInBridgeStatus   string  `xml:"builtInBridgeStatus"`
		PacketCaptureMode     string  `xml:"packetCaptureMode"`
		CertificateOperation  string  `xml:"certificateOperation"`
		DeviceMobilityMode    string  `xml:"deviceMobilityMode"`
		Lines                 []xLine `xml:"lines>line,omitempty"`
	} `xml:"phone"`
}

type uuidResp struct {
	UUID string `xml:"return"`
}

type updatePhoneReq struct {
	XMLName        xml.Name `xml:"ns:updatePhone"`
	Name           string   `xml:"name"`
	Description    string   `xml:"description,omitempty"`
	DevicePoolName string   `xml:"devicePoolName,omitempty"`
}

type removePhoneReq struct {
	XMLName xml.Name `xml:"ns:removePhone"`
	Name    string   `xml:"name"`
}

type doDeviceResetReq struct {
	XMLName         xml.Name `xml:"ns:doDeviceReset"`
	DeviceName      string   `xml:"deviceName"`
	IsHardReset     bool     `xml:"isHardReset"`
	DeviceResetType string   `xml:"deviceResetType"`
}

type getLineReq struct {
	XMLName            xml.Name `xml:"ns:getLine"`
	Pattern            string   `xml:"pattern"`
	RoutePartitionName string   `xml:"routePartitionName"`
}

type getLineResp struct {
	Line Line `xml:"return>line"`
}

type addLineReq struct {
	XMLName xml.Name `xml:"ns:addLine"`
	Line    struct {
		Pattern            string `xml:"pattern"`
		Description        string `xml:"description"`
		Usage              string `xml:"usage"`
		RoutePartitionName string `xml:"routePartitionName"`
		AlertingName       string `xml:"alertingName,omitempty"`
	} `xml:"line"`
}

type updateLineReq struct {
	XMLName              xml.Name `xml:"ns:updateLine"`
	Pattern              string   `xml:"pattern"`
	RoutePartitionName   string   `xml:"routePartitionName"`
	Description          string   `xml:"description,omitempty"`
	AlertingName         string   `xml:"alertingName,omitempty"`
	VoiceMailProfileName string   `xml:"voiceMailProfileName,omitempty"`
}

type getUserReq struct {
	XMLName xml.Name `xml:"ns:getUser"`
	UserID  string   `xml:"userid"`
}

type getUserResp struct {
	User User `xml:"return>user"`
}

type listUserReq struct {
	XMLName        xml.Name `xml:"ns:listUser"`
	SearchCriteria struct {
		LastName string `xml:"lastName,omitempty"`
		UserID   string `xml:"userid,omitempty"`
	} `xml:"searchCriteria"`
	ReturnedTags struct {
		UserID          string `xml:"userid"`
		FirstName       string `xml:"firstName"`
		LastName        string `xml:"lastName"`
		MailID          string `xml:"mailid"`
		TelephoneNumber string `xml:"telephoneNumber"`
	} `xml:"returnedTags"`
}

type listUserResp struct {
	Users []User `xml:"return>user"`
}

type updateUserReq struct {
	XMLName          xml.Name `xml:"ns:updateUser"`
	UserID           string   `xml:"userid"`
	TelephoneNumber  string   `xml:"telephoneNumber,omitempty"`
	PrimaryExtension *DirN    `xml:"primaryExtension,omitempty"`
}

type executeSQLQueryReq struct {
	XMLName xml.Name `xml:"ns:executeSQLQuery"`
	SQL     string   `xml:"sql"`
}
