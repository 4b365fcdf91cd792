package driver

// Built-in known-issue table. User extensions live in a JSON file
// merged on top of this at startup.
var knownBadDrivers = map[string]KnownIssue{
	// Graphics
	"nvlddmkm.sys": {
		Issue:          "NVIDIA GPU driver - known to cause BSOD with certain configurations",
		Recommendation: "Update to latest NVIDIA driver or perform clean install",
	},
	"amdkmdag.sys": {
		Issue:          "AMD GPU driver - can cause crashes with certain hardware",
		Recommendation: "Update AMD graphics drivers",
	},
	"igdkmd64.sys": {
		Issue:          "Intel GPU driver - may cause system instability",
		Recommendation: "Update Intel graphics driver",
	},
	// Network
	"rtwlanu.sys": {
		Issue:          "Realtek USB WiFi driver - known stability issues",
		Recommendation: "Update Realtek driver or use alternative WiFi adapter",
	},
	"netr28x.sys": {
		Issue:          "Ralink network driver - can cause BSOD",
		Recommendation: "Update or replace network driver",
	},
	// Antivirus and security
	"avgtdix.sys": {
		Issue:          "AVG Antivirus driver - known conflicts",
		Recommendation: "Update AVG or temporarily disable for testing",
	},
	"avghwnda.sys": {
		Issue:          "AVG driver component",
		Recommendation: "Update AVG Antivirus",
	},
	"bdss.sys": {
		Issue:          "BitDefender security driver",
		Recommendation: "Update BitDefender or check for conflicts",
	},
	"symefa.sys": {
		Issue:          "Symantec/Norton driver",
		Recommendation: "Update Norton Security",
	},
	"symevent.sys": {
		Issue:          "Symantec event driver",
		Recommendation: "Update or remove Symantec product",
	},
	"epfwwfp.sys": {
		Issue:          "ESET firewall driver",
		Recommendation: "Update ESET Security",
	},
	// Storage
	"iastora.sys": {
		Issue:          "Intel RST driver - can cause BSOD with certain SSDs",
		Recommendation: "Update Intel Rapid Storage Technology driver",
	},
	"iastorv.sys": {
		Issue:          "Intel storage driver",
		Recommendation: "Update Intel RST driver",
	},
	// Virtualization
	"vmm.sys": {
		Issue:          "VirtualBox memory manager",
		Recommendation: "Update VirtualBox or disable if not in use",
	},
	"vboxdrv.sys": {
		Issue:          "VirtualBox driver",
		Recommendation: "Update VirtualBox",
	},
	"vmci.sys": {
		Issue:          "VMware CI driver",
		Recommendation: "Update VMware Workstation",
	},
	// Gaming and audio
	"rgl64vk.sys": {
		Issue:          "Razer game capture driver",
		Recommendation: "Update Razer software",
	},
	"nahimic.sys": {
		Issue:          "Nahimic audio driver - known BSOD issues",
		Recommendation: "Update or disable Nahimic audio service",
	},
	// Vendor utilities
	"aicharger.sys": {
		Issue:          "ASUS AI Charger driver",
		Recommendation: "Update or remove ASUS AI Suite",
	},
	"asio.sys": {
		Issue:          "ASUS I/O driver for monitoring",
		Recommendation: "Update ASUS software",
	},
	// Filter driver magnets
	"ks.sys": {
		Issue:          "Windows kernel streaming - usually third-party filter driver issue",
		Recommendation: "Check audio/video capture software drivers",
	},
}
