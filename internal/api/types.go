package api

// ArrayDesc describes an array layout without data.
type ArrayDesc struct {
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
	// Order is "C", "F" or "strided". Ignored when Strides is set.
	Order string `json:"order,omitempty"`
	// Strides are byte strides, for layouts no order names.
	Strides []int  `json:"strides,omitempty"`
	Device  string `json:"device,omitempty"`
}

type PlanRequest struct {
	Dst     ArrayDesc  `json:"dst"`
	Src     ArrayDesc  `json:"src"`
	Where   *ArrayDesc `json:"where,omitempty"`
	Casting string     `json:"casting,omitempty"`
}

type PlanResponse struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Route     string `json:"route"`
	Memcopy   bool   `json:"memcopy_eligible"`
	Casting   string `json:"casting"`
	SrcDevice string `json:"src_device"`
	DstDevice string `json:"dst_device"`
}

// ArrayData is an array with its values listed in row-major order.
type ArrayData struct {
	Shape  []int  `json:"shape"`
	DType  string `json:"dtype"`
	Order  string `json:"order,omitempty"`
	Device string `json:"device,omitempty"`
	Values Values `json:"values"`
}

type CopyRequest struct {
	Dst     ArrayData  `json:"dst"`
	Src     ArrayData  `json:"src"`
	Where   *ArrayData `json:"where,omitempty"`
	Casting string     `json:"casting,omitempty"`
}

type CopyResponse struct {
	ID        string    `json:"id"`
	Object    string    `json:"object"`
	CreatedAt int64     `json:"created_at"`
	Route     string    `json:"route"`
	Casting   string    `json:"casting"`
	Dst       ArrayData `json:"dst"`
}

type DeviceList struct {
	Object  string   `json:"object"`
	Backend string   `json:"backend"`
	Data    []string `json:"data"`
}

type DeleteCopyResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
