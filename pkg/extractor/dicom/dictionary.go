// --- START OF FINAL REVISED FILE pkg/extractor/dicom/dictionary.go ---
package dicom

// dictEntry describes a public data element: its value representation,
// keyword and display name.
type dictEntry struct {
	VR      string
	Keyword string
	Name    string
}

// dictionary holds the data elements this extractor knows by name. It covers
// the file meta group and the patient, study, series, equipment, image and
// MR/CT acquisition modules. Elements missing here are still extracted; in
// implicit VR files their values are read as UN.
var dictionary = map[Tag]dictEntry{
	// File meta information
	0x00020000: {"UL", "FileMetaInformationGroupLength", "File Meta Information Group Length"},
	0x00020001: {"OB", "FileMetaInformationVersion", "File Meta Information Version"},
	0x00020002: {"UI", "MediaStorageSOPClassUID", "Media Storage SOP Class UID"},
	0x00020003: {"UI", "MediaStorageSOPInstanceUID", "Media Storage SOP Instance UID"},
	0x00020010: {"UI", "TransferSyntaxUID", "Transfer Syntax UID"},
	0x00020012: {"UI", "ImplementationClassUID", "Implementation Class UID"},
	0x00020013: {"SH", "ImplementationVersionName", "Implementation Version Name"},
	0x00020016: {"AE", "SourceApplicationEntityTitle", "Source Application Entity Title"},

	// SOP common, general study/series/equipment
	0x00080005: {"CS", "SpecificCharacterSet", "Specific Character Set"},
	0x00080008: {"CS", "ImageType", "Image Type"},
	0x00080012: {"DA", "InstanceCreationDate", "Instance Creation Date"},
	0x00080013: {"TM", "InstanceCreationTime", "Instance Creation Time"},
	0x00080014: {"UI", "InstanceCreatorUID", "Instance Creator UID"},
	0x00080016: {"UI", "SOPClassUID", "SOP Class UID"},
	0x00080018: {"UI", "SOPInstanceUID", "SOP Instance UID"},
	0x00080020: {"DA", "StudyDate", "Study Date"},
	0x00080021: {"DA", "SeriesDate", "Series Date"},
	0x00080022: {"DA", "AcquisitionDate", "Acquisition Date"},
	0x00080023: {"DA", "ContentDate", "Content Date"},
	0x0008002A: {"DT", "AcquisitionDateTime", "Acquisition DateTime"},
	0x00080030: {"TM", "StudyTime", "Study Time"},
	0x00080031: {"TM", "SeriesTime", "Series Time"},
	0x00080032: {"TM", "AcquisitionTime", "Acquisition Time"},
	0x00080033: {"TM", "ContentTime", "Content Time"},
	0x00080050: {"SH", "AccessionNumber", "Accession Number"},
	0x00080060: {"CS", "Modality", "Modality"},
	0x00080061: {"CS", "ModalitiesInStudy", "Modalities in Study"},
	0x00080064: {"CS", "ConversionType", "Conversion Type"},
	0x00080070: {"LO", "Manufacturer", "Manufacturer"},
	0x00080080: {"LO", "InstitutionName", "Institution Name"},
	0x00080081: {"ST", "InstitutionAddress", "Institution Address"},
	0x00080090: {"PN", "ReferringPhysicianName", "Referring Physician's Name"},
	0x00080100: {"SH", "CodeValue", "Code Value"},
	0x00080102: {"SH", "CodingSchemeDesignator", "Coding Scheme Designator"},
	0x00080104: {"LO", "CodeMeaning", "Code Meaning"},
	0x00081010: {"SH", "StationName", "Station Name"},
	0x00081030: {"LO", "StudyDescription", "Study Description"},
	0x00081032: {"SQ", "ProcedureCodeSequence", "Procedure Code Sequence"},
	0x0008103E: {"LO", "SeriesDescription", "Series Description"},
	0x00081040: {"LO", "InstitutionalDepartmentName", "Institutional Department Name"},
	0x00081050: {"PN", "PerformingPhysicianName", "Performing Physician's Name"},
	0x00081060: {"PN", "NameOfPhysiciansReadingStudy", "Name of Physician(s) Reading Study"},
	0x00081070: {"PN", "OperatorsName", "Operators' Name"},
	0x00081090: {"LO", "ManufacturerModelName", "Manufacturer's Model Name"},
	0x00081110: {"SQ", "ReferencedStudySequence", "Referenced Study Sequence"},
	0x00081111: {"SQ", "ReferencedPerformedProcedureStepSequence", "Referenced Performed Procedure Step Sequence"},
	0x00081140: {"SQ", "ReferencedImageSequence", "Referenced Image Sequence"},
	0x00081150: {"UI", "ReferencedSOPClassUID", "Referenced SOP Class UID"},
	0x00081155: {"UI", "ReferencedSOPInstanceUID", "Referenced SOP Instance UID"},
	0x00082111: {"ST", "DerivationDescription", "Derivation Description"},
	0x00082112: {"SQ", "SourceImageSequence", "Source Image Sequence"},
	0x00089205: {"CS", "PixelPresentation", "Pixel Presentation"},
	0x00089206: {"CS", "VolumetricProperties", "Volumetric Properties"},
	0x00089207: {"CS", "VolumeBasedCalculationTechnique", "Volume Based Calculation Technique"},
	0x00089209: {"CS", "AcquisitionContrast", "Acquisition Contrast"},

	// Patient
	0x00100010: {"PN", "PatientName", "Patient's Name"},
	0x00100020: {"LO", "PatientID", "Patient ID"},
	0x00100021: {"LO", "IssuerOfPatientID", "Issuer of Patient ID"},
	0x00100030: {"DA", "PatientBirthDate", "Patient's Birth Date"},
	0x00100040: {"CS", "PatientSex", "Patient's Sex"},
	0x00101010: {"AS", "PatientAge", "Patient's Age"},
	0x00101020: {"DS", "PatientSize", "Patient's Size"},
	0x00101030: {"DS", "PatientWeight", "Patient's Weight"},
	0x00102160: {"SH", "EthnicGroup", "Ethnic Group"},
	0x00104000: {"LT", "PatientComments", "Patient Comments"},
	0x00120062: {"CS", "PatientIdentityRemoved", "Patient Identity Removed"},
	0x00120063: {"LO", "DeidentificationMethod", "De-identification Method"},

	// Acquisition
	0x00180010: {"LO", "ContrastBolusAgent", "Contrast/Bolus Agent"},
	0x00180015: {"CS", "BodyPartExamined", "Body Part Examined"},
	0x00180020: {"CS", "ScanningSequence", "Scanning Sequence"},
	0x00180021: {"CS", "SequenceVariant", "Sequence Variant"},
	0x00180022: {"CS", "ScanOptions", "Scan Options"},
	0x00180023: {"CS", "MRAcquisitionType", "MR Acquisition Type"},
	0x00180024: {"SH", "SequenceName", "Sequence Name"},
	0x00180025: {"CS", "AngioFlag", "Angio Flag"},
	0x00180050: {"DS", "SliceThickness", "Slice Thickness"},
	0x00180060: {"DS", "KVP", "KVP"},
	0x00180080: {"DS", "RepetitionTime", "Repetition Time"},
	0x00180081: {"DS", "EchoTime", "Echo Time"},
	0x00180082: {"DS", "InversionTime", "Inversion Time"},
	0x00180083: {"DS", "NumberOfAverages", "Number of Averages"},
	0x00180084: {"DS", "ImagingFrequency", "Imaging Frequency"},
	0x00180085: {"SH", "ImagedNucleus", "Imaged Nucleus"},
	0x00180086: {"IS", "EchoNumbers", "Echo Number(s)"},
	0x00180087: {"DS", "MagneticFieldStrength", "Magnetic Field Strength"},
	0x00180088: {"DS", "SpacingBetweenSlices", "Spacing Between Slices"},
	0x00180089: {"IS", "NumberOfPhaseEncodingSteps", "Number of Phase Encoding Steps"},
	0x00180090: {"DS", "DataCollectionDiameter", "Data Collection Diameter"},
	0x00180091: {"IS", "EchoTrainLength", "Echo Train Length"},
	0x00180093: {"DS", "PercentSampling", "Percent Sampling"},
	0x00180094: {"DS", "PercentPhaseFieldOfView", "Percent Phase Field of View"},
	0x00180095: {"DS", "PixelBandwidth", "Pixel Bandwidth"},
	0x00181000: {"LO", "DeviceSerialNumber", "Device Serial Number"},
	0x00181020: {"LO", "SoftwareVersions", "Software Versions"},
	0x00181030: {"LO", "ProtocolName", "Protocol Name"},
	0x00181041: {"DS", "ContrastBolusVolume", "Contrast/Bolus Volume"},
	0x00181044: {"DS", "ContrastBolusTotalDose", "Contrast/Bolus Total Dose"},
	0x00181048: {"CS", "ContrastBolusIngredient", "Contrast/Bolus Ingredient"},
	0x00181049: {"DS", "ContrastBolusIngredientConcentration", "Contrast/Bolus Ingredient Concentration"},
	0x00181063: {"DS", "FrameTime", "Frame Time"},
	0x00181088: {"IS", "HeartRate", "Heart Rate"},
	0x00181100: {"DS", "ReconstructionDiameter", "Reconstruction Diameter"},
	0x00181120: {"DS", "GantryDetectorTilt", "Gantry/Detector Tilt"},
	0x00181130: {"DS", "TableHeight", "Table Height"},
	0x00181150: {"IS", "ExposureTime", "Exposure Time"},
	0x00181151: {"IS", "XRayTubeCurrent", "X-Ray Tube Current"},
	0x00181152: {"IS", "Exposure", "Exposure"},
	0x00181160: {"SH", "FilterType", "Filter Type"},
	0x00181210: {"SH", "ConvolutionKernel", "Convolution Kernel"},
	0x00181250: {"SH", "ReceiveCoilName", "Receive Coil Name"},
	0x00181251: {"SH", "TransmitCoilName", "Transmit Coil Name"},
	0x00181310: {"US", "AcquisitionMatrix", "Acquisition Matrix"},
	0x00181312: {"CS", "InPlanePhaseEncodingDirection", "In-plane Phase Encoding Direction"},
	0x00181314: {"DS", "FlipAngle", "Flip Angle"},
	0x00181315: {"CS", "VariableFlipAngleFlag", "Variable Flip Angle Flag"},
	0x00181316: {"DS", "SAR", "SAR"},
	0x00181318: {"DS", "dBdt", "dB/dt"},
	0x00185100: {"CS", "PatientPosition", "Patient Position"},
	0x00189004: {"CS", "ContentQualification", "Content Qualification"},
	0x00189005: {"SH", "PulseSequenceName", "Pulse Sequence Name"},
	0x00189073: {"FD", "AcquisitionDuration", "Acquisition Duration"},
	0x00189087: {"FD", "DiffusionBValue", "Diffusion b-value"},
	0x00189089: {"FD", "DiffusionGradientOrientation", "Diffusion Gradient Orientation"},
	0x00189302: {"CS", "AcquisitionType", "Acquisition Type"},

	// Relationship
	0x0020000D: {"UI", "StudyInstanceUID", "Study Instance UID"},
	0x0020000E: {"UI", "SeriesInstanceUID", "Series Instance UID"},
	0x00200010: {"SH", "StudyID", "Study ID"},
	0x00200011: {"IS", "SeriesNumber", "Series Number"},
	0x00200012: {"IS", "AcquisitionNumber", "Acquisition Number"},
	0x00200013: {"IS", "InstanceNumber", "Instance Number"},
	0x00200020: {"CS", "PatientOrientation", "Patient Orientation"},
	0x00200032: {"DS", "ImagePositionPatient", "Image Position (Patient)"},
	0x00200037: {"DS", "ImageOrientationPatient", "Image Orientation (Patient)"},
	0x00200052: {"UI", "FrameOfReferenceUID", "Frame of Reference UID"},
	0x00200060: {"CS", "Laterality", "Laterality"},
	0x00201040: {"LO", "PositionReferenceIndicator", "Position Reference Indicator"},
	0x00201041: {"DS", "SliceLocation", "Slice Location"},
	0x00204000: {"LT", "ImageComments", "Image Comments"},

	// Image pixel
	0x00280002: {"US", "SamplesPerPixel", "Samples per Pixel"},
	0x00280004: {"CS", "PhotometricInterpretation", "Photometric Interpretation"},
	0x00280006: {"US", "PlanarConfiguration", "Planar Configuration"},
	0x00280008: {"IS", "NumberOfFrames", "Number of Frames"},
	0x00280010: {"US", "Rows", "Rows"},
	0x00280011: {"US", "Columns", "Columns"},
	0x00280030: {"DS", "PixelSpacing", "Pixel Spacing"},
	0x00280034: {"IS", "PixelAspectRatio", "Pixel Aspect Ratio"},
	0x00280100: {"US", "BitsAllocated", "Bits Allocated"},
	0x00280101: {"US", "BitsStored", "Bits Stored"},
	0x00280102: {"US", "HighBit", "High Bit"},
	0x00280103: {"US", "PixelRepresentation", "Pixel Representation"},
	0x00280106: {"US", "SmallestImagePixelValue", "Smallest Image Pixel Value"},
	0x00280107: {"US", "LargestImagePixelValue", "Largest Image Pixel Value"},
	0x00281050: {"DS", "WindowCenter", "Window Center"},
	0x00281051: {"DS", "WindowWidth", "Window Width"},
	0x00281052: {"DS", "RescaleIntercept", "Rescale Intercept"},
	0x00281053: {"DS", "RescaleSlope", "Rescale Slope"},
	0x00281054: {"LO", "RescaleType", "Rescale Type"},
	0x00281055: {"LO", "WindowCenterWidthExplanation", "Window Center & Width Explanation"},
	0x00282110: {"CS", "LossyImageCompression", "Lossy Image Compression"},

	// Study/procedure
	0x00321032: {"PN", "RequestingPhysician", "Requesting Physician"},
	0x00321060: {"LO", "RequestedProcedureDescription", "Requested Procedure Description"},
	0x00400244: {"DA", "PerformedProcedureStepStartDate", "Performed Procedure Step Start Date"},
	0x00400245: {"TM", "PerformedProcedureStepStartTime", "Performed Procedure Step Start Time"},
	0x00400253: {"SH", "PerformedProcedureStepID", "Performed Procedure Step ID"},
	0x00400254: {"LO", "PerformedProcedureStepDescription", "Performed Procedure Step Description"},
	0x00400260: {"SQ", "PerformedProtocolCodeSequence", "Performed Protocol Code Sequence"},
	0x00400275: {"SQ", "RequestAttributesSequence", "Request Attributes Sequence"},
	0x00401001: {"SH", "RequestedProcedureID", "Requested Procedure ID"},
	0x00400009: {"SH", "ScheduledProcedureStepID", "Scheduled Procedure Step ID"},

	// Multi-frame functional groups
	0x52009229: {"SQ", "SharedFunctionalGroupsSequence", "Shared Functional Groups Sequence"},
	0x52009230: {"SQ", "PerFrameFunctionalGroupsSequence", "Per-frame Functional Groups Sequence"},

	// Pixel data and item delimiters
	0x7FE00010: {"OW", "PixelData", "Pixel Data"},
	0xFFFEE000: {"NONE", "Item", "Item"},
	0xFFFEE00D: {"NONE", "ItemDelimitationItem", "Item Delimitation Item"},
	0xFFFEE0DD: {"NONE", "SequenceDelimitationItem", "Sequence Delimitation Item"},
}

// keywordIndex maps keywords (case-sensitive, as in the standard) to tags.
var keywordIndex = func() map[string]Tag {
	idx := make(map[string]Tag, len(dictionary))
	for tag, e := range dictionary {
		idx[e.Keyword] = tag
	}
	return idx
}()

// CorePreset is the fixed field set of the original MR-focused export.
var CorePreset = []string{
	"Modality", "ImageType", "ModalitiesInStudy", "PatientID", "PatientName",
	"PatientBirthDate", "PatientSex", "StudyDate", "SeriesDate", "AcquisitionDate",
	"SeriesTime", "AcquisitionTime", "InstanceCreationDate", "InstanceCreationTime",
	"SequenceName", "ScanningSequence", "MRAcquisitionType", "AcquisitionType",
	"SeriesDescription", "StudyInstanceUID", "Manufacturer", "ManufacturerModelName",
	"SOPClassUID", "SOPInstanceUID", "SeriesInstanceUID", "StudyID", "SeriesNumber",
	"AcquisitionNumber", "InstanceNumber", "ContrastBolusAgent", "BodyPartExamined",
	"SequenceVariant", "ScanOptions", "AngioFlag", "SliceThickness", "RepetitionTime",
	"EchoTime", "InversionTime", "NumberOfAverages", "ImagedNucleus", "EchoNumbers",
	"MagneticFieldStrength", "SpacingBetweenSlices", "NumberOfPhaseEncodingSteps",
	"EchoTrainLength", "PercentSampling", "PercentPhaseFieldOfView", "PixelBandwidth",
	"SoftwareVersions", "ProtocolName", "ContrastBolusVolume",
	"ContrastBolusTotalDose", "ContrastBolusIngredient",
	"ContrastBolusIngredientConcentration", "DiffusionBValue", "TransmitCoilName",
	"AcquisitionMatrix", "InPlanePhaseEncodingDirection", "FlipAngle",
	"VariableFlipAngleFlag", "SAR", "PatientPosition", "Rows", "Columns",
}

// lookupVR returns the dictionary VR for tag, applying the standard rules for
// group lengths and private creators when the tag is not listed.
func lookupVR(tag Tag) string {
	if e, ok := dictionary[tag]; ok {
		return e.VR
	}
	switch {
	case tag.Element() == 0x0000:
		return "UL"
	case tag.IsPrivateCreator():
		return "LO"
	}
	return "UN"
}

// elementName returns the display name used in field keys.
func elementName(tag Tag) string {
	if e, ok := dictionary[tag]; ok {
		return e.Name
	}
	switch {
	case tag.IsPrivateCreator():
		return "Private Creator"
	case tag.IsPrivate():
		return "Private tag data"
	case tag.Element() == 0x0000:
		return "Group Length"
	}
	return "Unknown Tag & Data"
}

// --- END OF FINAL REVISED FILE pkg/extractor/dicom/dictionary.go ---
