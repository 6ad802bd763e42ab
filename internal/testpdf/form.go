package testpdf

// Object numbers used by Form.
const (
	FormCatalog   = 1
	FormPages     = 2
	FormAcroForm  = 3
	FormPage1     = 4
	FormPage2     = 5
	FormPatient   = 10
	FormInsured   = 11
	FormPlan      = 12
	FormAddress   = 13
	FormStreet    = 14
	FormCity      = 15
	FormSubmit    = 16
	FormYesAP     = 17
	FormOffAP     = 18
	FormHelvetica = 20
	FormDingbats  = 21
	FormInfo      = 22
)

// Form returns the builder for a two-page intake form with the fields
//
//	patient_name    text, MaxLen 40
//	is_insured      checkbox, on-state Yes
//	plan_type       combo box, options HMO and PPO
//	address.street  text (inherits FT and DA from address)
//	address.city    text
//	submit          push button
func Form() *Builder {
	b := New()
	b.Add(FormCatalog, "<< /Type /Catalog /Pages 2 0 R /AcroForm 3 0 R >>")
	b.Add(FormPages, "<< /Type /Pages /Kids [4 0 R 5 0 R] /Count 2 /MediaBox [0 0 612 792] >>")
	b.Add(FormAcroForm, "<< /Fields [10 0 R 11 0 R 12 0 R 13 0 R 16 0 R] /DR << /Font << /Helv 20 0 R /ZaDb 21 0 R >> >> /DA (/Helv 0 Tf 0 g) >>")
	b.Add(FormPage1, "<< /Type /Page /Parent 2 0 R /Contents 6 0 R /Resources << /Font << /F1 20 0 R >> >> /Annots [10 0 R 11 0 R 14 0 R 15 0 R] >>")
	b.Add(FormPage2, "<< /Type /Page /Parent 2 0 R /Contents 7 0 R /Resources << >> /Annots [12 0 R 16 0 R] >>")
	b.AddStream(6, "", []byte("0 0 1 rg 50 700 200 40 re f\nBT /F1 18 Tf 50 750 Td (Patient Intake) Tj ET"))
	b.AddStream(7, "", []byte("0.5 g 50 50 100 100 re f"))
	b.Add(FormPatient, "<< /FT /Tx /T (patient_name) /MaxLen 40 /DA (/Helv 10 Tf 0 g) /V (Old Name) /Type /Annot /Subtype /Widget /Rect [100 600 300 620] /P 4 0 R /F 4 >>")
	b.Add(FormInsured, "<< /FT /Btn /T (is_insured) /V /Off /AS /Off /Type /Annot /Subtype /Widget /Rect [100 560 115 575] /P 4 0 R /F 4 /AP << /N << /Yes 17 0 R /Off 18 0 R >> >> >>")
	b.Add(FormPlan, "<< /FT /Ch /Ff 131072 /T (plan_type) /Opt [(HMO) (PPO)] /V (HMO) /DA (/Helv 10 Tf 0 g) /Type /Annot /Subtype /Widget /Rect [100 500 200 520] /P 5 0 R /F 4 >>")
	b.Add(FormAddress, "<< /T (address) /FT /Tx /DA (/Helv 9 Tf 0 g) /Kids [14 0 R 15 0 R] >>")
	b.Add(FormStreet, "<< /T (street) /Parent 13 0 R /Type /Annot /Subtype /Widget /Rect [100 450 300 470] /P 4 0 R /F 4 >>")
	b.Add(FormCity, "<< /T (city) /Parent 13 0 R /V (Springfield) /Type /Annot /Subtype /Widget /Rect [100 420 300 440] /P 4 0 R /F 4 >>")
	b.Add(FormSubmit, "<< /FT /Btn /Ff 65536 /T (submit) /Type /Annot /Subtype /Widget /Rect [400 50 500 80] /P 5 0 R /F 4 >>")
	b.AddStream(FormYesAP, "/Type /XObject /Subtype /Form /BBox [0 0 15 15] /Resources << /Font << /ZaDb 21 0 R >> >>", []byte("0 g BT /ZaDb 12 Tf 2 3 Td (4) Tj ET"))
	b.AddStream(FormOffAP, "/Type /XObject /Subtype /Form /BBox [0 0 15 15]", []byte(""))
	b.Add(FormHelvetica, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	b.Add(FormDingbats, "<< /Type /Font /Subtype /Type1 /BaseFont /ZapfDingbats >>")
	b.Add(FormInfo, "<< /Title (Intake) /Producer (testpdf) >>")
	return b
}

// FormPDF is Form built with a classic xref table.
func FormPDF() []byte {
	return Form().Build(FormCatalog, "/Info 22 0 R")
}
