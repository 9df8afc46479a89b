// Package simkit defines the adapter surface between GridSim's components
// and the discrete-event kernel that drives them. The kernel itself
// (scheduling events, advancing simulated time, waking entities) is an
// external collaborator — simkit only names the interface it must satisfy.
package simkit

// Tag identifies the kind of a dispatched event. This is the stable wire
// taxonomy of spec.md §6.
type Tag string

const (
	// Lifecycle
	TagEndOfSimulation Tag = "END_OF_SIMULATION"
	TagInsignificant   Tag = "INSIGNIFICANT"

	// Job
	TagGridletSubmit    Tag = "GRIDLET_SUBMIT"
	TagGridletSubmitAck Tag = "GRIDLET_SUBMIT_ACK"
	TagGridletCancel    Tag = "GRIDLET_CANCEL"
	TagGridletReturn    Tag = "GRIDLET_RETURN"
	TagGridletStatus    Tag = "GRIDLET_STATUS"
	TagGridletMove      Tag = "GRIDLET_MOVE"
	TagGridletPause     Tag = "GRIDLET_PAUSE"
	TagGridletResume    Tag = "GRIDLET_RESUME"
	TagUptSchedule      Tag = "UPT_SCHEDULE"

	// Reservation
	TagResCreate Tag = "RES_CREATE"
	TagResCommit Tag = "RES_COMMIT"
	TagResCancel Tag = "RES_CANCEL"
	TagResQuery  Tag = "RES_QUERY"
	TagResStatus Tag = "RES_STATUS"
	TagResModify Tag = "RES_MODIFY"
	TagResExpiry Tag = "RES_EXPIRY_TICK"

	// Data grid
	TagFileAddMaster        Tag = "FILE_ADD_MASTER"
	TagFileAddMasterResult  Tag = "FILE_ADD_MASTER_RESULT"
	TagFileAddReplica       Tag = "FILE_ADD_REPLICA"
	TagFileAddReplicaResult Tag = "FILE_ADD_REPLICA_RESULT"
	TagFileDeleteMaster     Tag = "FILE_DELETE_MASTER"
	TagFileDeleteReplica    Tag = "FILE_DELETE_REPLICA"
	TagFileRequest          Tag = "FILE_REQUEST"
	TagFileDelivery         Tag = "FILE_DELIVERY"
	TagCtlgAddMaster        Tag = "CTLG_ADD_MASTER"
	TagCtlgAddReplica       Tag = "CTLG_ADD_REPLICA"
	TagCtlgGetReplica       Tag = "CTLG_GET_REPLICA"
	TagCtlgReplicaDelivery  Tag = "CTLG_REPLICA_DELIVERY"
	TagCtlgDeleteMaster     Tag = "CTLG_DELETE_MASTER"
	TagCtlgDeleteReplica    Tag = "CTLG_DELETE_REPLICA"
	TagCtlgFileAttrDelivery Tag = "CTLG_FILE_ATTR_DELIVERY"
	TagCtlgFilter           Tag = "CTLG_FILTER"

	// Network
	TagPktForward                       Tag = "PKT_FORWARD"
	TagEmptyPkt                         Tag = "EMPTY_PKT"
	TagJunkPkt                          Tag = "JUNK_PKT"
	TagSendPacket                       Tag = "SEND_PACKET"
	TagRouterAd                         Tag = "ROUTER_AD"
	TagPacketDropped                    Tag = "PACKET_DROPPED"
	TagGridletFailedBecausePacketDropped Tag = "GRIDLET_FAILED_BECAUSE_PACKET_DROPPED"
	TagFileFailedBecausePacketDropped    Tag = "FILE_FAILED_BECAUSE_PACKET_DROPPED"
	TagAredAdapt                         Tag = "ARED_ADAPT_TICK"

	// Index
	TagInquiryRegionalGIS        Tag = "INQUIRY_REGIONAL_GIS"
	TagInquiryLocalResourceList  Tag = "INQUIRY_LOCAL_RESOURCE_LIST"
	TagInquiryLocalResourceAR    Tag = "INQUIRY_LOCAL_RESOURCE_AR_LIST"
	TagInquiryGlobalResourceList Tag = "INQUIRY_GLOBAL_RESOURCE_LIST"
	TagInquiryGlobalResourceAR   Tag = "INQUIRY_GLOBAL_RESOURCE_AR_LIST"
	TagInquiryLocalRCList        Tag = "INQUIRY_LOCAL_RC_LIST"
	TagInquiryGlobalRCList       Tag = "INQUIRY_GLOBAL_RC_LIST"
)

// SCHEDULE_NOW is the sentinel delay used for self-events that must be
// observed after all currently-pending events at the same simulated time
// (spec.md §5 ordering guarantees).
const ScheduleNow float64 = 0
