// Package eusb2 provides register addresses and vendor tables for I2C-attached
// eUSB2 signal repeaters (NXP PTN3222 family and the TI equivalent part).
package eusb2

const (
	// --- NXP PTN3222 registers (8-bit address, 8-bit value) ---
	nxpRegResetControl    = 0x01
	nxpRegLinkControl1    = 0x02
	nxpRegLinkControl2    = 0x03
	nxpRegEUSB2RxControl  = 0x04
	nxpRegEUSB2TxControl  = 0x05
	nxpRegUSB2RxControl   = 0x06
	nxpRegUSB2TxControl1  = 0x07
	nxpRegUSB2TxControl2  = 0x08
	nxpRegHSTermination   = 0x09
	nxpRegHSDisconnectThr = 0x0A
	nxpRegRAPSignature    = 0x0D
	nxpRegDeviceStatus    = 0x0F
	nxpRegLinkStatus      = 0x10
	nxpRegRevisionID      = 0x13
	nxpRegChipID0         = 0x14
	nxpRegChipID1         = 0x15
	nxpRegChipID2         = 0x16

	// --- TI repeater registers ---
	tiRegGPIO0Config  = 0x00
	tiRegGPIO1Config  = 0x40
	tiRegUARTPort1    = 0x50
	tiRegExtraPort1   = 0x51
	tiRegRevID        = 0xB0
	tiRegGlobalConfig = 0xB2
	tiRegIntEnable1   = 0xB3
	tiRegIntEnable2   = 0xB4
	tiRegBCControl    = 0xB6
	tiRegBCStatus1    = 0xB7
	tiRegIntStatus1   = 0xA3
	tiRegIntStatus2   = 0xA4
)

// tuneMapNXP lists every register worth snapshotting on the NXP part, in
// datasheet order.
var tuneMapNXP = [...]uint8{
	nxpRegResetControl,
	nxpRegLinkControl1,
	nxpRegLinkControl2,
	nxpRegEUSB2RxControl,
	nxpRegEUSB2TxControl,
	nxpRegUSB2RxControl,
	nxpRegUSB2TxControl1,
	nxpRegUSB2TxControl2,
	nxpRegHSTermination,
	nxpRegHSDisconnectThr,
	nxpRegRAPSignature,
	nxpRegDeviceStatus,
	nxpRegLinkStatus,
	nxpRegRevisionID,
	nxpRegChipID0,
	nxpRegChipID1,
	nxpRegChipID2,
}

var tuneMapTI = [...]uint8{
	tiRegGPIO0Config,
	tiRegGPIO1Config,
	tiRegUARTPort1,
	tiRegExtraPort1,
	tiRegRevID,
	tiRegGlobalConfig,
	tiRegIntEnable1,
	tiRegIntEnable2,
	tiRegBCControl,
	tiRegBCStatus1,
	tiRegIntStatus1,
	tiRegIntStatus2,
}

// profile carries the per-vendor-family data the controller needs.
type profile struct {
	tuneMap []uint8

	// Host test-mode control register. Writing it while the link operates in
	// client mode is unsafe on parts that define it.
	hostTestModeReg uint8
	hasHostTestMode bool
}

var profiles = map[Vendor]profile{
	VendorNXP: {
		tuneMap:         tuneMapNXP[:],
		hostTestModeReg: nxpRegLinkControl1,
		hasHostTestMode: true,
	},
	VendorTI: {
		tuneMap: tuneMapTI[:],
	},
}
